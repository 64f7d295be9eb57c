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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parkingcam/parkingcam/events"
)

type countingNotifier struct {
	notifies int
	closed   bool
}

func (c *countingNotifier) Notify(e events.Event) error {
	c.notifies++
	return nil
}

func (c *countingNotifier) Close() { c.closed = true }

// testClock implements ratelimit.Clock with manual control.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestThrottledNotifier() (*countingNotifier, *ThrottledNotifier, *testClock) {
	clock := &testClock{now: time.Now()}
	notifier := new(countingNotifier)
	conf := Config{
		ApplyThrottling: true,
		BucketSize:      3,
		MinRefill:       time.Minute,
	}
	return notifier, NewThrottledNotifierWithClock(notifier, conf, clock), clock
}

func TestNotificationsWithinBucketPassThrough(t *testing.T) {
	notifier, throttled, _ := newTestThrottledNotifier()

	for i := 0; i < 3; i++ {
		assert.NoError(t, throttled.Notify(events.Event{}))
	}
	assert.Equal(t, 3, notifier.notifies)
	assert.Zero(t, throttled.Suppressed())
}

func TestExcessNotificationsAreSuppressed(t *testing.T) {
	notifier, throttled, _ := newTestThrottledNotifier()

	for i := 0; i < 5; i++ {
		assert.NoError(t, throttled.Notify(events.Event{}))
	}
	assert.Equal(t, 3, notifier.notifies)
	assert.Equal(t, int64(2), throttled.Suppressed())
}

func TestBucketRefillsOverTime(t *testing.T) {
	notifier, throttled, clock := newTestThrottledNotifier()

	for i := 0; i < 4; i++ {
		throttled.Notify(events.Event{})
	}
	assert.Equal(t, 3, notifier.notifies)

	// One refill interval earns one notification back.
	clock.advance(time.Minute)
	throttled.Notify(events.Event{})
	assert.Equal(t, 4, notifier.notifies)

	throttled.Notify(events.Event{})
	assert.Equal(t, 4, notifier.notifies, "bucket empty again")
}

func TestCloseReachesWrappedNotifier(t *testing.T) {
	notifier, throttled, _ := newTestThrottledNotifier()
	throttled.Close()
	assert.True(t, notifier.closed)
}
