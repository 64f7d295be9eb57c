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

package events

import (
	"log"
	"time"
)

// Event describes one occupancy transition. Occupied is the new state;
// TrueCount and HistoryLen capture the aggregator at the moment the
// state flipped.
type Event struct {
	Occupied   bool
	TrueCount  int
	HistoryLen int
	Timestamp  time.Time
}

// State returns the new state as a word for payloads and log lines.
func (e Event) State() string {
	if e.Occupied {
		return "present"
	}
	return "absent"
}

// Notifier delivers occupancy transitions somewhere useful. Notify is
// called from the detection path so implementations must not block for
// long; slow transports should buffer or drop.
type Notifier interface {
	Notify(Event) error
	Close()
}

// LogNotifier writes transitions to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(e Event) error {
	log.Printf("occupancy is now %s (%d/%d positive)", e.State(), e.TrueCount, e.HistoryLen)
	return nil
}

func (LogNotifier) Close() {}

// Multi fans an event out to several notifiers. The first error is
// returned but every notifier still gets the event.
type Multi []Notifier

func (m Multi) Notify(e Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Close() {
	for _, n := range m {
		n.Close()
	}
}
