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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parkingcam/parkingcam/frames"
)

const (
	KindRTSP = "rtsp"
	KindFile = "file"
)

// ErrNoFrame is returned by the supervisor while the source is down
// and a reconnect is pending. The caller keeps its loop running and
// treats the cycle as frameless.
var ErrNoFrame = errors.New("no frame available")

type Config struct {
	Kind                  string `yaml:"kind"`
	URL                   string `yaml:"url"`
	Path                  string `yaml:"path"`
	ConnectTimeoutSeconds int    `yaml:"connect-timeout-seconds"`
	ReadTimeoutSeconds    int    `yaml:"read-timeout-seconds"`
}

func DefaultConfig() Config {
	return Config{
		Kind:                  KindRTSP,
		ConnectTimeoutSeconds: 10,
		ReadTimeoutSeconds:    10,
	}
}

func (conf *Config) Validate() error {
	switch conf.Kind {
	case KindRTSP:
		if strings.TrimSpace(conf.URL) == "" {
			return errors.New("rtsp source requires a url")
		}
	case KindFile:
		if strings.TrimSpace(conf.Path) == "" {
			return errors.New("file source requires a path")
		}
	default:
		return fmt.Errorf("unknown source kind %q", conf.Kind)
	}
	if conf.ConnectTimeoutSeconds < 1 {
		return errors.New("connect timeout must be at least 1 second")
	}
	if conf.ReadTimeoutSeconds < 1 {
		return errors.New("read timeout must be at least 1 second")
	}
	return nil
}

func (conf *Config) ConnectTimeout() time.Duration {
	return time.Duration(conf.ConnectTimeoutSeconds) * time.Second
}

func (conf *Config) ReadTimeout() time.Duration {
	return time.Duration(conf.ReadTimeoutSeconds) * time.Second
}

// FrameSource yields decoded frames from a video source. Open must
// verify liveness by producing a probe frame within the connect
// timeout; a source that opens but never yields frames is a failed
// open. Read returns io.EOF at end of stream (finite sources only).
type FrameSource interface {
	Open() error
	Read() (*frames.Frame, error)
	Close() error
}

// Rewinder is implemented by finite sources that can restart playback
// from the first frame.
type Rewinder interface {
	Rewind() error
}

// DecodeErrorReporter is implemented by sources that can report frames
// that failed to decode. A decode failure does not interrupt the
// stream; later frames still arrive.
type DecodeErrorReporter interface {
	SetOnDecodeError(func())
}

// NewSource builds a FrameSource for the configured kind. RTSP
// sources force TCP transport so packet loss cannot corrupt partial
// frames; file sources decode at native rate and expose Rewind.
func NewSource(conf Config) (FrameSource, error) {
	switch conf.Kind {
	case KindRTSP:
		url := normalizeRTSPURL(conf.URL)
		args := []string{
			"-rtsp_transport", "tcp",
			"-i", url,
			"-an",
			"-c:v", "bmp",
			"-f", "image2pipe",
			"-",
		}
		return newFFmpegSource(args, conf.ConnectTimeout(), conf.ReadTimeout()), nil
	case KindFile:
		args := []string{
			"-re",
			"-i", conf.Path,
			"-an",
			"-c:v", "bmp",
			"-f", "image2pipe",
			"-",
		}
		return newFFmpegSource(args, conf.ConnectTimeout(), conf.ReadTimeout()), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", conf.Kind)
	}
}

// normalizeRTSPURL adds the rtsp:// prefix when the config omits it.
func normalizeRTSPURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "rtsp://") {
		url = "rtsp://" + url
	}
	return url
}
