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

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/parkingcam/parkingcam/pipeline"
	"github.com/parkingcam/parkingcam/region"
)

const (
	dbusName = "org.parkingcam.parkingcam"
	dbusPath = "/org/parkingcam/parkingcam"
)

type service struct {
	scheduler *pipeline.Scheduler
	holder    *frameHolder
	resolver  *region.Resolver
	dir       string
}

func startService(scheduler *pipeline.Scheduler, holder *frameHolder, resolver *region.Resolver, dir string) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		scheduler: scheduler,
		holder:    holder,
		resolver:  resolver,
		dir:       dir,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")

	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// Status reports the current occupancy state, the number of positive
// entries in history, and how much history has accumulated.
func (s *service) Status() (bool, int, int, *dbus.Error) {
	snap := s.scheduler.Snapshot()
	return snap.Occupied, snap.TrueCount, snap.HistoryLen, nil
}

// History returns the presence history, oldest first.
func (s *service) History() ([]bool, *dbus.Error) {
	return s.scheduler.History(), nil
}

// TakeSnapshot saves the most recent frame and its region crop as
// still images.
func (s *service) TakeSnapshot() *dbus.Error {
	if err := newSnapshot(s.dir, s.holder, s.resolver); err != nil {
		return &dbus.Error{
			Name: dbusName + ".TakeSnapshot",
			Body: []interface{}{err.Error()},
		}
	}
	return nil
}
