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

import "time"

// Smoother extends a positive detection for a grace window after the
// last positive, masking brief negative blips from a flaky detector.
// The window is sized in whole detection cycles (interval x cycles) so
// it scales with how often detection actually runs. A zero window
// disables smoothing.
type Smoother struct {
	window       time.Duration
	lastPositive time.Time
}

func NewSmoother(window time.Duration) *Smoother {
	return &Smoother{window: window}
}

// Smooth converts the raw detector outcome at time now into the
// effective one. A raw positive refreshes the grace window; a raw
// negative still counts as positive while inside it.
func (s *Smoother) Smooth(rawTriggered bool, now time.Time) bool {
	if rawTriggered {
		s.lastPositive = now
		return true
	}
	if s.window > 0 && !s.lastPositive.IsZero() && now.Sub(s.lastPositive) < s.window {
		return true
	}
	return false
}
