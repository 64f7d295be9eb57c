// parkingcam - watch a parking spot over a video stream and keep a
// stable occupancy signal
//  Copyright (C) 2024, parkingcam contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"golang.org/x/image/bmp"

	"github.com/parkingcam/parkingcam/frames"
)

const bmpHeaderSize = 14

// CheckFFmpeg verifies the ffmpeg binary is on PATH. Called once at
// startup.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg binary not found: %w", err)
	}
	return nil
}

// ffmpegSource runs an ffmpeg subprocess that decodes the input to a
// stream of BMP images on stdout. A reader goroutine decodes frames
// into a channel so Read can enforce a timeout on a blocking pipe.
type ffmpegSource struct {
	args           []string
	connectTimeout time.Duration
	readTimeout    time.Duration

	cmd    *exec.Cmd
	stdout io.ReadCloser
	ch     chan readResult
	quit   chan struct{}
	probe  *frames.Frame

	// seq is atomic: a restarted decode goroutine can briefly overlap
	// with the one it replaces.
	seq atomic.Uint64

	onDecodeError func()
}

type readResult struct {
	frame *frames.Frame
	err   error
}

func newFFmpegSource(args []string, connectTimeout, readTimeout time.Duration) *ffmpegSource {
	return &ffmpegSource{
		args:           args,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
	}
}

// Open starts the decoder and waits for one probe frame. The probe
// frame is buffered and handed out on the first Read so no content is
// lost.
func (s *ffmpegSource) Open() error {
	cmd := exec.Command("ffmpeg", s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.ch = make(chan readResult)
	s.quit = make(chan struct{})
	go s.decodeLoop(stdout, s.ch, s.quit)

	// Liveness check: a connection that opens but never yields a
	// frame is a failed open.
	select {
	case res, ok := <-s.ch:
		if !ok {
			s.Close()
			return errors.New("stream ended before the first frame")
		}
		if res.err != nil {
			s.Close()
			return fmt.Errorf("probe read failed: %w", res.err)
		}
		s.probe = res.frame
		return nil
	case <-time.After(s.connectTimeout):
		s.Close()
		return fmt.Errorf("no frame within %v of opening", s.connectTimeout)
	}
}

func (s *ffmpegSource) Read() (*frames.Frame, error) {
	if s.cmd == nil {
		return nil, errors.New("source not open")
	}
	if s.probe != nil {
		frame := s.probe
		s.probe = nil
		return frame, nil
	}

	select {
	case res, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return res.frame, res.err
	case <-time.After(s.readTimeout):
		return nil, fmt.Errorf("no frame within %v", s.readTimeout)
	}
}

// SetOnDecodeError registers a callback invoked for each frame that
// fails to decode. Must be called before Open.
func (s *ffmpegSource) SetOnDecodeError(fn func()) {
	s.onDecodeError = fn
}

// Rewind restarts playback from the first frame by relaunching the
// decoder.
func (s *ffmpegSource) Rewind() error {
	s.Close()
	return s.Open()
}

func (s *ffmpegSource) Close() error {
	if s.cmd == nil {
		return nil
	}
	close(s.quit)
	s.stdout.Close()
	s.cmd.Process.Kill()
	s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	s.ch = nil
	s.quit = nil
	s.probe = nil
	return nil
}

// decodeLoop reads BMP images off the pipe until it breaks, closing
// the channel on the way out. A clean EOF (finite source drained)
// closes the channel without a preceding error result.
func (s *ffmpegSource) decodeLoop(r io.Reader, ch chan<- readResult, quit <-chan struct{}) {
	defer close(ch)

	send := func(res readResult) bool {
		select {
		case ch <- res:
			return true
		case <-quit:
			return false
		}
	}

	header := make([]byte, bmpHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err != io.EOF {
				send(readResult{err: err})
			}
			return
		}
		if header[0] != 'B' || header[1] != 'M' {
			send(readResult{err: errors.New("desynchronised: not a BMP header")})
			return
		}

		fileSize := binary.LittleEndian.Uint32(header[2:6])
		if fileSize <= bmpHeaderSize {
			send(readResult{err: fmt.Errorf("implausible BMP size %d", fileSize)})
			return
		}
		body := make([]byte, fileSize-bmpHeaderSize)
		if _, err := io.ReadFull(r, body); err != nil {
			send(readResult{err: err})
			return
		}

		img, err := bmp.Decode(bytes.NewReader(append(header, body...)))
		if err != nil {
			if s.onDecodeError != nil {
				s.onDecodeError()
			}
			if !send(readResult{err: fmt.Errorf("decoding frame: %w", err)}) {
				return
			}
			continue
		}

		if !send(readResult{frame: frames.FromImage(img, s.seq.Add(1), time.Now())}) {
			return
		}
	}
}
