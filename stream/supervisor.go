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
	"io"
	"time"

	"github.com/parkingcam/parkingcam/frames"
	"github.com/parkingcam/parkingcam/loglimiter"
)

const (
	readRetries    = 3
	readRetryDelay = 100 * time.Millisecond

	networkReconnectDelay = 5 * time.Second
	fileReconnectDelay    = time.Second

	failureLogInterval = 30 * time.Second
)

// Supervisor owns the FrameSource lifecycle: it opens the source,
// retries failed reads, reconnects dead connections with a delay, and
// loops finite sources back to their first frame. Nothing else holds
// the underlying connection; consumers only see frames.
//
// Next never blocks longer than the source's own timeouts: while a
// reconnect is pending it returns ErrNoFrame immediately so the
// acquisition loop keeps its cadence.
type Supervisor struct {
	source FrameSource
	kind   string

	connected   bool
	reconnectAt time.Time

	now     func() time.Time
	sleep   func(time.Duration)
	limiter *loglimiter.LogLimiter

	// OnReconnect, when set, is called each time a dead connection is
	// scheduled for reconnect.
	OnReconnect func()
}

func NewSupervisor(source FrameSource, kind string) *Supervisor {
	return &Supervisor{
		source:  source,
		kind:    kind,
		now:     time.Now,
		sleep:   time.Sleep,
		limiter: loglimiter.New(failureLogInterval),
	}
}

func (s *Supervisor) reconnectDelay() time.Duration {
	if s.kind == KindFile {
		return fileReconnectDelay
	}
	return networkReconnectDelay
}

// Next returns the next frame, or ErrNoFrame while the source is down.
func (s *Supervisor) Next() (*frames.Frame, error) {
	if !s.connected {
		if s.now().Before(s.reconnectAt) {
			return nil, ErrNoFrame
		}
		if err := s.source.Open(); err != nil {
			s.limiter.Printf("%s source open failed: %v", s.kind, err)
			s.scheduleReconnect()
			return nil, ErrNoFrame
		}
		s.connected = true
		s.limiter.Printf("%s source connected", s.kind)
	}

	frame, err := s.source.Read()
	if err == nil {
		return frame, nil
	}

	if err == io.EOF && s.kind == KindFile {
		return s.loopFile()
	}

	// Mid-stream glitch: retry a few times before declaring the
	// connection dead.
	s.limiter.Printf("%s read failed: %v", s.kind, err)
	for i := 0; i < readRetries; i++ {
		s.sleep(readRetryDelay)
		frame, err = s.source.Read()
		if err == nil {
			return frame, nil
		}
	}

	s.limiter.Printf("%s source dead after %d read retries: %v", s.kind, readRetries, err)
	s.disconnect()
	return nil, ErrNoFrame
}

// loopFile seeks a finite source back to its first frame. If the
// rewind+read fails twice the file is closed and reopened after the
// usual reconnect delay.
func (s *Supervisor) loopFile() (*frames.Frame, error) {
	rewinder, ok := s.source.(Rewinder)
	if !ok {
		s.disconnect()
		return nil, ErrNoFrame
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if err := rewinder.Rewind(); err != nil {
			s.limiter.Printf("file rewind failed (attempt %d): %v", attempt, err)
			continue
		}
		frame, err := s.source.Read()
		if err == nil {
			return frame, nil
		}
		s.limiter.Printf("read after rewind failed (attempt %d): %v", attempt, err)
	}

	s.limiter.Print("giving up on rewind, reopening file")
	s.disconnect()
	return nil, ErrNoFrame
}

func (s *Supervisor) disconnect() {
	s.source.Close()
	s.connected = false
	s.scheduleReconnect()
	s.limiter.Printf("%s source disconnected, reconnecting in %v", s.kind, s.reconnectDelay())
}

func (s *Supervisor) scheduleReconnect() {
	s.reconnectAt = s.now().Add(s.reconnectDelay())
	if s.OnReconnect != nil {
		s.OnReconnect()
	}
}

// Connected reports whether frames are currently flowing.
func (s *Supervisor) Connected() bool { return s.connected }

// Close releases the underlying source.
func (s *Supervisor) Close() {
	if s.connected {
		s.source.Close()
		s.connected = false
	}
}
