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

package pipeline

import (
	"image"
	"sync"
	"time"

	"github.com/parkingcam/parkingcam/detect"
	"github.com/parkingcam/parkingcam/events"
	"github.com/parkingcam/parkingcam/loglimiter"
	"github.com/parkingcam/parkingcam/presence"
)

const failureLogInterval = 30 * time.Second

// Observer receives pipeline instrumentation callbacks. All methods
// must be cheap; they can be called with the scheduler lock held.
type Observer interface {
	DetectionRun()
	CacheHit()
	DetectorError()
	NotificationSent()
	Presence(occupied bool)
}

type nopObserver struct{}

func (nopObserver) DetectionRun()     {}
func (nopObserver) CacheHit()         {}
func (nopObserver) DetectorError()    {}
func (nopObserver) NotificationSent() {}
func (nopObserver) Presence(bool)     {}

// Snapshot is a point-in-time copy of the published pipeline state,
// safe to hand to render and status paths.
type Snapshot struct {
	Occupied     bool
	TrueCount    int
	HistoryLen   int
	InFlight     bool
	LastRun      time.Time
	Detections   []detect.Detection
	RegionWidth  int
	RegionHeight int
	UpdatedAt    time.Time
}

type slot struct {
	result    detect.Result
	updatedAt time.Time
}

// Scheduler gates how often the detector runs and owns all pipeline
// state behind a single mutex: the result cache, the smoother, the
// presence history and the published detection slot. At most one
// detection is in flight at a time; an interval tick arriving while
// one runs is skipped, never queued. A tick with no frame available
// counts as an automatic negative observation so a dead stream decays
// toward absent instead of freezing the last state.
//
// Tick is called from the acquisition loop and never blocks on
// detection; the expensive work happens on a background goroutine and
// its completion is folded back in under the lock.
type Scheduler struct {
	detector      detect.Detector
	interval      time.Duration
	minConfidence float64
	triggerSet    map[int]bool
	notifier      events.Notifier
	observer      Observer
	limiter       *loglimiter.LogLimiter

	now func() time.Time
	wg  sync.WaitGroup

	mu         sync.Mutex
	cache      detect.ResultCache
	smoother   *presence.Smoother
	aggregator *presence.Aggregator
	slot       slot
	inFlight   bool
	lastRun    time.Time
	occupied   bool
}

func NewScheduler(
	detector detect.Detector,
	detConf detect.Config,
	presConf presence.Config,
	notifier events.Notifier,
	observer Observer,
) *Scheduler {
	return NewSchedulerWithClock(detector, detConf, presConf, notifier, observer, time.Now)
}

// NewSchedulerWithClock is NewScheduler with the clock exposed so
// tests and offline playback can drive the interval gate themselves.
func NewSchedulerWithClock(
	detector detect.Detector,
	detConf detect.Config,
	presConf presence.Config,
	notifier events.Notifier,
	observer Observer,
	now func() time.Time,
) *Scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scheduler{
		detector:      detector,
		interval:      detConf.Interval(),
		minConfidence: detConf.ConfidenceThreshold,
		triggerSet:    detConf.TriggerSet(),
		notifier:      notifier,
		observer:      observer,
		limiter:       loglimiter.New(failureLogInterval),
		now:           now,
		smoother:      presence.NewSmoother(presConf.SmoothingWindow(detConf.Interval())),
		aggregator:    presence.NewAggregator(presConf),
	}
}

// Tick offers the current cycle's region crop to the scheduler. A nil
// region means no frame was available this cycle. Returns true when a
// detection was dispatched.
func (s *Scheduler) Tick(region *image.RGBA) bool {
	now := s.now()

	s.mu.Lock()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		s.mu.Unlock()
		return false
	}

	if region == nil {
		// Automatic negative: bypasses detector, cache and smoother
		// but still consumes the interval slot.
		s.lastRun = now
		s.aggregator.Record(false)
		occupied, event, changed := s.evaluateLocked(now)
		s.mu.Unlock()
		s.publish(occupied, event, changed)
		return false
	}

	if s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.lastRun = now
	// Registered with the WaitGroup before the lock is released so a
	// concurrent Wait always sees the dispatch.
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		result, cacheHit := s.detect(region)
		s.complete(result, cacheHit)
	}()
	return true
}

// detect runs one detection cycle: fingerprint, cache lookup, and the
// detector itself on a miss. Detector failures are fail-open: the
// cycle reads as "nothing seen" and the result is left uncacheable so
// the next identical frame gets a fresh attempt.
func (s *Scheduler) detect(region *image.RGBA) (detect.Result, bool) {
	bounds := region.Bounds()

	fingerprint, err := detect.Fingerprint(region)
	if err != nil {
		s.limiter.Printf("fingerprinting failed: %v", err)
		fingerprint = ""
	}

	s.mu.Lock()
	cached, hit := s.cache.Lookup(fingerprint, bounds.Dx(), bounds.Dy())
	s.mu.Unlock()
	if hit {
		s.observer.CacheHit()
		return cached, true
	}

	s.observer.DetectionRun()
	detections, err := s.detector.Detect(region, s.minConfidence)
	if err != nil {
		s.limiter.Printf("detector error: %v", err)
		s.observer.DetectorError()
		detections = nil
		fingerprint = ""
	}

	return detect.Result{
		Triggered:    detect.Triggered(detections, s.triggerSet),
		Detections:   detections,
		RegionWidth:  bounds.Dx(),
		RegionHeight: bounds.Dy(),
		Fingerprint:  fingerprint,
	}, false
}

// complete folds a finished detection back into the pipeline state:
// cache, smoother, history, then the published slot, in that order.
// The raw (pre-smoothing) result is what gets cached and published;
// smoothing only affects what history records.
func (s *Scheduler) complete(result detect.Result, cacheHit bool) {
	now := s.now()

	s.mu.Lock()
	if !cacheHit {
		s.cache.Store(result)
	}
	smoothed := s.smoother.Smooth(result.Triggered, now)
	s.aggregator.Record(smoothed)
	s.slot = slot{result: result, updatedAt: now}
	s.inFlight = false
	occupied, event, changed := s.evaluateLocked(now)
	s.mu.Unlock()

	s.publish(occupied, event, changed)
}

// evaluateLocked re-runs the hysteresis rule and builds the transition
// event when the state flipped. Caller holds the lock.
func (s *Scheduler) evaluateLocked(now time.Time) (bool, events.Event, bool) {
	occupied := s.aggregator.Present()
	changed := occupied != s.occupied
	s.occupied = occupied
	if !changed {
		return occupied, events.Event{}, false
	}
	return occupied, events.Event{
		Occupied:   occupied,
		TrueCount:  s.aggregator.TrueCount(),
		HistoryLen: s.aggregator.Len(),
		Timestamp:  now,
	}, true
}

// publish runs outside the lock so a slow notifier cannot stall the
// acquisition loop or the next detection completion.
func (s *Scheduler) publish(occupied bool, event events.Event, changed bool) {
	s.observer.Presence(occupied)
	if !changed || s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(event); err != nil {
		s.limiter.Printf("notifying occupancy transition: %v", err)
		return
	}
	s.observer.NotificationSent()
}

// Snapshot copies the published state for render and status paths.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	detections := make([]detect.Detection, len(s.slot.result.Detections))
	copy(detections, s.slot.result.Detections)
	return Snapshot{
		Occupied:     s.occupied,
		TrueCount:    s.aggregator.TrueCount(),
		HistoryLen:   s.aggregator.Len(),
		InFlight:     s.inFlight,
		LastRun:      s.lastRun,
		Detections:   detections,
		RegionWidth:  s.slot.result.RegionWidth,
		RegionHeight: s.slot.result.RegionHeight,
		UpdatedAt:    s.slot.updatedAt,
	}
}

// History returns the presence history, oldest first.
func (s *Scheduler) History() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregator.History()
}

// Wait blocks until any in-flight detection has completed. Called on
// shutdown; late results are folded in but nothing reads them.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
