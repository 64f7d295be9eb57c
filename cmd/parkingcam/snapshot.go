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
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path"
	"sync"
	"time"

	"github.com/parkingcam/parkingcam/detect"
	"github.com/parkingcam/parkingcam/frames"
	"github.com/parkingcam/parkingcam/region"
	"github.com/parkingcam/parkingcam/stream"
)

const (
	snapshotName          = "still.png"
	regionSnapshotName    = "still-region.png"
	allowedSnapshotPeriod = 500 * time.Millisecond
)

var previousSnapshotTime time.Time

// frameHolder keeps the most recent frame for on-demand snapshots.
type frameHolder struct {
	mu    sync.Mutex
	frame *frames.Frame
}

func newFrameHolder() *frameHolder {
	return &frameHolder{}
}

func (h *frameHolder) set(f *frames.Frame) {
	h.mu.Lock()
	h.frame = f
	h.mu.Unlock()
}

func (h *frameHolder) get() *frames.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// newSnapshot saves the most recent frame and its region crop as PNG
// stills. Requests arriving faster than once per half second are
// silently ignored.
func newSnapshot(dir string, holder *frameHolder, resolver *region.Resolver) error {
	if time.Since(previousSnapshotTime) < allowedSnapshotPeriod {
		return nil
	}

	frame := holder.get()
	if frame == nil {
		return errors.New("no frames yet")
	}

	if err := writePNG(path.Join(dir, snapshotName), frame.Pix); err != nil {
		return err
	}
	reg := resolver.Resolve(frame.Width(), frame.Height())
	if err := writePNG(path.Join(dir, regionSnapshotName), frame.Crop(reg.Rect())); err != nil {
		return err
	}

	// The time is only updated when the attempt succeeds.
	previousSnapshotTime = time.Now()
	return nil
}

func writePNG(filename string, img *image.RGBA) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}

// runSnapshotMode captures count stills with synchronous detection and
// exits. Smoothing is pointless for one-shot captures so the detector
// output is reported raw.
func runSnapshotMode(conf *Config, detector detect.Detector, count int, intervalSeconds float64, dir string) error {
	source, err := stream.NewSource(conf.Stream)
	if err != nil {
		return err
	}
	supervisor := stream.NewSupervisor(source, conf.Stream.Kind)
	defer supervisor.Close()

	resolver := region.NewResolver(conf.Region)
	triggerSet := conf.Detect.TriggerSet()
	interval := time.Duration(intervalSeconds * float64(time.Second))

	for taken := 0; taken < count; {
		frame, err := supervisor.Next()
		if err != nil {
			time.Sleep(cycleTime)
			continue
		}

		reg := resolver.Resolve(frame.Width(), frame.Height())
		crop := frame.Crop(reg.Rect())
		detections, err := detector.Detect(crop, conf.Detect.ConfidenceThreshold)
		if err != nil {
			log.Printf("detector error: %v", err)
		}

		name := fmt.Sprintf("frame-%04d.png", taken)
		if err := writePNG(path.Join(dir, name), frame.Pix); err != nil {
			return err
		}
		log.Printf("%s: %d detections, triggered=%v", name, len(detections),
			detect.Triggered(detections, triggerSet))

		taken++
		if taken < count {
			time.Sleep(interval)
		}
	}
	return nil
}
