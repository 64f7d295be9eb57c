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

package main

import (
	"log"

	"github.com/parkingcam/parkingcam/frames"
	"github.com/parkingcam/parkingcam/pipeline"
	"github.com/parkingcam/parkingcam/region"
)

// Renderer receives every acquired frame together with the latest
// published detection state, at the acquisition loop's cadence.
// Driving actual display hardware is out of scope; implementations
// forward the feed elsewhere.
type Renderer interface {
	Render(frame *frames.Frame, reg region.Region, snap pipeline.Snapshot)
}

type nullRenderer struct{}

func (nullRenderer) Render(*frames.Frame, region.Region, pipeline.Snapshot) {}

// logRenderer logs the published detection state whenever it changes.
// Used with --verbose.
type logRenderer struct {
	last  pipeline.Snapshot
	valid bool
}

func (r *logRenderer) Render(_ *frames.Frame, reg region.Region, snap pipeline.Snapshot) {
	if r.valid && snap.Occupied == r.last.Occupied && snap.TrueCount == r.last.TrueCount {
		return
	}
	r.last = snap
	r.valid = true
	log.Printf("state: occupied=%v positive=%d/%d detections=%d region=%v",
		snap.Occupied, snap.TrueCount, snap.HistoryLen, len(snap.Detections), reg)
}
