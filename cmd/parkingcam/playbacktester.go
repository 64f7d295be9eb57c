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
	"io"
	"log"
	"sync"
	"time"

	"github.com/parkingcam/parkingcam/detect"
	"github.com/parkingcam/parkingcam/events"
	"github.com/parkingcam/parkingcam/pipeline"
	"github.com/parkingcam/parkingcam/region"
	"github.com/parkingcam/parkingcam/stream"
)

// PlaybackTester runs a recorded video through the full pipeline as
// fast as frames decode, driving the scheduler's clock so every frame
// gets a detection cycle. Useful for tuning region, thresholds and
// trigger classes against a known clip.
type PlaybackTester struct {
	conf     *Config
	detector detect.Detector
}

type playbackResults struct {
	frames      int
	cycles      int
	cacheHits   int
	triggered   int
	transitions int
}

func NewPlaybackTester(conf *Config, detector detect.Detector) *PlaybackTester {
	return &PlaybackTester{conf: conf, detector: detector}
}

type playbackClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *playbackClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *playbackClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type transitionCounter struct {
	count int
}

func (n *transitionCounter) Notify(e events.Event) error {
	log.Printf("transition: %s (%d/%d positive)", e.State(), e.TrueCount, e.HistoryLen)
	n.count++
	return nil
}

func (n *transitionCounter) Close() {}

type playbackObserver struct {
	runs, hits int
}

func (o *playbackObserver) DetectionRun()     { o.runs++ }
func (o *playbackObserver) CacheHit()         { o.hits++ }
func (o *playbackObserver) DetectorError()    {}
func (o *playbackObserver) NotificationSent() {}
func (o *playbackObserver) Presence(bool)     {}

func (t *PlaybackTester) Run(filename string) (*playbackResults, error) {
	conf := *t.conf
	conf.Stream.Kind = stream.KindFile
	conf.Stream.Path = filename

	source, err := stream.NewSource(conf.Stream)
	if err != nil {
		return nil, err
	}
	if err := source.Open(); err != nil {
		return nil, err
	}
	defer source.Close()

	clock := &playbackClock{t: time.Now()}
	counter := &transitionCounter{}
	observer := &playbackObserver{}
	scheduler := pipeline.NewSchedulerWithClock(
		t.detector, conf.Detect, conf.Presence, counter, observer, clock.now)
	resolver := region.NewResolver(conf.Region)
	triggerSet := conf.Detect.TriggerSet()
	interval := conf.Detect.Interval()

	results := &playbackResults{}
	for {
		frame, err := source.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		results.frames++

		reg := resolver.Resolve(frame.Width(), frame.Height())
		if scheduler.Tick(frame.Crop(reg.Rect())) {
			// Serialise so per-cycle results are inspectable.
			scheduler.Wait()
			results.cycles++
			snap := scheduler.Snapshot()
			if detect.Triggered(snap.Detections, triggerSet) {
				results.triggered++
			}
		}
		clock.advance(interval)
	}

	results.cacheHits = observer.hits
	results.transitions = counter.count
	return results, nil
}
