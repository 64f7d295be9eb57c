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

package throttle

import (
	"log"
	"time"

	"github.com/juju/ratelimit"

	"github.com/parkingcam/parkingcam/events"
)

type Config struct {
	ApplyThrottling bool          `yaml:"apply-throttling"`
	BucketSize      int           `yaml:"bucket-size"`
	MinRefill       time.Duration `yaml:"min-refill"`
}

func DefaultConfig() Config {
	return Config{
		ApplyThrottling: true,
		BucketSize:      10,
		MinRefill:       time.Minute,
	}
}

// ThrottledNotifier wraps a notifier so that occupancy transitions
// stop being delivered (ie get throttled) if they come too often. A
// well-tuned hysteresis band makes transitions rare; a misconfigured
// one can flap every cycle and this keeps that from spamming the
// broker. The token bucket holds BucketSize notifications and earns
// one back every MinRefill.
type ThrottledNotifier struct {
	notifier   events.Notifier
	bucket     *ratelimit.Bucket
	suppressed int64
}

func NewThrottledNotifier(notifier events.Notifier, conf Config) *ThrottledNotifier {
	return NewThrottledNotifierWithClock(notifier, conf, nil)
}

// NewThrottledNotifierWithClock is NewThrottledNotifier with the
// bucket's clock exposed for tests. A nil clock means wall time.
func NewThrottledNotifierWithClock(notifier events.Notifier, conf Config, clock ratelimit.Clock) *ThrottledNotifier {
	return &ThrottledNotifier{
		notifier: notifier,
		bucket:   ratelimit.NewBucketWithClock(conf.MinRefill, int64(conf.BucketSize), clock),
	}
}

func (t *ThrottledNotifier) Notify(e events.Event) error {
	if t.bucket.TakeAvailable(1) == 0 {
		t.suppressed++
		log.Printf("notification throttled (%d suppressed so far)", t.suppressed)
		return nil
	}
	return t.notifier.Notify(e)
}

// Suppressed is the number of notifications dropped by throttling.
func (t *ThrottledNotifier) Suppressed() int64 { return t.suppressed }

func (t *ThrottledNotifier) Close() {
	t.notifier.Close()
}
