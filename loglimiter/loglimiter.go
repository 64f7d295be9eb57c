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

package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// New returns a LogLimiter with the configured minimum interval
// between repeats of the same message.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		seen:     make(map[string]time.Time),
	}
}

// LogLimiter suppresses a log message if the same message was emitted
// within some time interval. Distinct messages are tracked
// independently so two alternating failure lines (say, a reconnect
// error and a read error) are each limited on their own.
type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(s string) {
	now := limiter.nowFunc()

	limiter.mu.Lock()
	last, ok := limiter.seen[s]
	if ok && now.Sub(last) < limiter.interval {
		limiter.mu.Unlock()
		return
	}
	limiter.seen[s] = now
	limiter.mu.Unlock()

	log.Print(s)
}
