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

package detect

import (
	"errors"
	"image"
	"time"
)

// Detection is one object reported by the detector, as a plain value.
// Model-library result shapes stay behind the Detector implementations.
type Detection struct {
	ClassID    int
	Confidence float64
	Box        image.Rectangle
}

// Detector wraps the underlying object-detection model. Detections
// below minConfidence are filtered at this boundary; callers never see
// them. Implementations must be safe for sequential reuse and must
// bound how long a call can block.
type Detector interface {
	Detect(img image.Image, minConfidence float64) ([]Detection, error)
}

// Result is the outcome of one detection cycle. Immutable after
// creation; the next cycle supersedes it atomically.
type Result struct {
	Triggered    bool
	Detections   []Detection
	RegionWidth  int
	RegionHeight int
	Fingerprint  string // empty when fingerprinting failed
}

type Config struct {
	ServerAddr          string  `yaml:"server-addr"`
	TimeoutSeconds      int     `yaml:"timeout-seconds"`
	IntervalSeconds     float64 `yaml:"interval-seconds"`
	ConfidenceThreshold float64 `yaml:"confidence-threshold"`
	TriggerClasses      []int   `yaml:"trigger-classes"`
}

// Default trigger classes are COCO IDs whose presence marks the spot
// occupied: 2=car, 8=boat, 28=suitcase.
func DefaultConfig() Config {
	return Config{
		ServerAddr:          "127.0.0.1:8555",
		TimeoutSeconds:      10,
		IntervalSeconds:     1.0,
		ConfidenceThreshold: 0.4,
		TriggerClasses:      []int{2, 8, 28},
	}
}

func (conf *Config) Validate() error {
	if conf.IntervalSeconds <= 0 {
		return errors.New("detection interval must be positive")
	}
	if conf.ConfidenceThreshold < 0 || conf.ConfidenceThreshold > 1 {
		return errors.New("confidence threshold must be between 0 and 1")
	}
	if len(conf.TriggerClasses) == 0 {
		return errors.New("at least one trigger class is required")
	}
	return nil
}

func (conf *Config) Interval() time.Duration {
	return time.Duration(conf.IntervalSeconds * float64(time.Second))
}

func (conf *Config) Timeout() time.Duration {
	return time.Duration(conf.TimeoutSeconds) * time.Second
}

// TriggerSet returns the trigger classes as a set for lookups.
func (conf *Config) TriggerSet() map[int]bool {
	set := make(map[int]bool, len(conf.TriggerClasses))
	for _, id := range conf.TriggerClasses {
		set[id] = true
	}
	return set
}

// Triggered reports whether any detection belongs to a trigger class.
func Triggered(detections []Detection, triggerClasses map[int]bool) bool {
	for _, d := range detections {
		if triggerClasses[d.ClassID] {
			return true
		}
	}
	return false
}
