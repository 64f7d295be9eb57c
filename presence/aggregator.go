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

package presence

import (
	"errors"
	"time"
)

type Config struct {
	HistorySize      int `yaml:"history-size"`
	PresentThreshold int `yaml:"present-threshold"`
	AbsentThreshold  int `yaml:"absent-threshold"`
	SmoothingCycles  int `yaml:"smoothing-cycles"`
}

func DefaultConfig() Config {
	return Config{
		HistorySize:      120,
		PresentThreshold: 80,
		AbsentThreshold:  40,
		SmoothingCycles:  1,
	}
}

func (conf *Config) Validate() error {
	if conf.HistorySize < 1 {
		return errors.New("history-size must be at least 1")
	}
	if conf.PresentThreshold > conf.HistorySize {
		return errors.New("present-threshold cannot exceed history-size")
	}
	if conf.AbsentThreshold >= conf.PresentThreshold {
		return errors.New("absent-threshold must be below present-threshold")
	}
	if conf.SmoothingCycles < 0 {
		return errors.New("smoothing-cycles cannot be negative")
	}
	return nil
}

// SmoothingWindow is the temporal smoothing grace period: whole
// detection cycles after the last positive during which a negative
// still counts as positive.
func (conf *Config) SmoothingWindow(detectionInterval time.Duration) time.Duration {
	return detectionInterval * time.Duration(conf.SmoothingCycles)
}

// Aggregator keeps a bounded FIFO of per-cycle booleans and derives a
// stable present/absent state with dual-threshold hysteresis: present
// once the true count reaches PresentThreshold, absent once it drops
// to AbsentThreshold, previous state kept in between. Not safe for
// concurrent use; callers guard it with the pipeline mutex.
type Aggregator struct {
	history          []bool
	capacity         int
	presentThreshold int
	absentThreshold  int
	trueCount        int
	present          bool
}

func NewAggregator(conf Config) *Aggregator {
	return &Aggregator{
		history:          make([]bool, 0, conf.HistorySize),
		capacity:         conf.HistorySize,
		presentThreshold: conf.PresentThreshold,
		absentThreshold:  conf.AbsentThreshold,
	}
}

// Record appends one observation, evicting the oldest beyond capacity.
func (a *Aggregator) Record(triggered bool) {
	if len(a.history) == a.capacity {
		if a.history[0] {
			a.trueCount--
		}
		copy(a.history, a.history[1:])
		a.history = a.history[:len(a.history)-1]
	}
	a.history = append(a.history, triggered)
	if triggered {
		a.trueCount++
	}
}

// Present evaluates the hysteresis rule against the current history,
// using the previously returned state inside the band.
func (a *Aggregator) Present() bool {
	switch {
	case a.trueCount >= a.presentThreshold:
		a.present = true
	case a.trueCount <= a.absentThreshold:
		a.present = false
	}
	return a.present
}

// TrueCount is the number of positive entries currently in history.
func (a *Aggregator) TrueCount() int { return a.trueCount }

// Len is the number of entries currently in history.
func (a *Aggregator) Len() int { return len(a.history) }

// History returns a copy of the current history, oldest first.
func (a *Aggregator) History() []bool {
	snapshot := make([]bool, len(a.history))
	copy(snapshot, a.history)
	return snapshot
}
