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

package stream

import (
	"errors"
	"image"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkingcam/parkingcam/frames"
)

var errBroken = errors.New("pipe broke")

// fakeSource is a scriptable FrameSource: openErrs are consumed one
// per Open call, readErrs one per Read call (nil meaning success).
type fakeSource struct {
	openErrs []error
	readErrs []error

	opens   int
	reads   int
	rewinds int
	closes  int

	rewindErr error
}

func (f *fakeSource) Open() error {
	f.opens++
	if len(f.openErrs) == 0 {
		return nil
	}
	err := f.openErrs[0]
	f.openErrs = f.openErrs[1:]
	return err
}

func (f *fakeSource) Read() (*frames.Frame, error) {
	f.reads++
	var err error
	if len(f.readErrs) > 0 {
		err = f.readErrs[0]
		f.readErrs = f.readErrs[1:]
	}
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	return frames.FromImage(img, uint64(f.reads), time.Time{}), nil
}

func (f *fakeSource) Rewind() error {
	f.rewinds++
	return f.rewindErr
}

func (f *fakeSource) Close() error {
	f.closes++
	return nil
}

// testClock makes time and sleeps deterministic: sleeping advances the
// clock instead of blocking.
type testClock struct {
	t      time.Time
	slept  time.Duration
	sleeps int
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
	c.slept += d
	c.sleeps++
}

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSupervisor(source FrameSource, kind string) (*Supervisor, *testClock) {
	clock := &testClock{t: time.Now()}
	s := NewSupervisor(source, kind)
	s.now = clock.now
	s.sleep = clock.sleep
	return s, clock
}

func TestSupervisorConnectsAndDeliversFrames(t *testing.T) {
	source := &fakeSource{}
	s, _ := newTestSupervisor(source, KindRTSP)

	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.True(t, s.Connected())
	assert.Equal(t, 1, source.opens)

	// Subsequent calls reuse the open connection.
	_, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, source.opens)
	assert.Equal(t, 2, source.reads)
}

func TestSupervisorRetriesFailedOpensWithDelay(t *testing.T) {
	source := &fakeSource{
		openErrs: []error{errBroken, errBroken},
	}
	s, clock := newTestSupervisor(source, KindRTSP)

	_, err := s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.False(t, s.Connected())
	assert.Equal(t, 1, source.opens)

	// Within the reconnect delay no new attempt is made.
	clock.advance(time.Second)
	_, err = s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.Equal(t, 1, source.opens)

	// Past the delay the open is retried (and fails again).
	clock.advance(networkReconnectDelay)
	_, err = s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.Equal(t, 2, source.opens)

	// Third attempt succeeds and a frame flows.
	clock.advance(networkReconnectDelay)
	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.True(t, s.Connected())
}

func TestSupervisorRetriesTransientReadFailure(t *testing.T) {
	source := &fakeSource{
		readErrs: []error{errBroken, errBroken, nil},
	}
	s, clock := newTestSupervisor(source, KindRTSP)

	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.True(t, s.Connected())
	assert.Equal(t, 3, source.reads)
	assert.Equal(t, 2, clock.sleeps)
	assert.Equal(t, 2*readRetryDelay, clock.slept)
}

func TestSupervisorDisconnectsAfterExhaustedReadRetries(t *testing.T) {
	source := &fakeSource{
		readErrs: []error{errBroken, errBroken, errBroken, errBroken},
	}
	s, clock := newTestSupervisor(source, KindRTSP)

	_, err := s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.False(t, s.Connected())
	assert.Equal(t, 4, source.reads, "initial read plus three retries")
	assert.Equal(t, 1, source.closes)

	// Reconnects after the network delay.
	clock.advance(networkReconnectDelay)
	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, 2, source.opens)
}

func TestSupervisorEOFOnNetworkSourceIsAFailure(t *testing.T) {
	source := &fakeSource{
		readErrs: []error{io.EOF, io.EOF, io.EOF, io.EOF},
	}
	s, _ := newTestSupervisor(source, KindRTSP)

	_, err := s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.False(t, s.Connected())
	assert.Zero(t, source.rewinds, "network sources never rewind")
}

func TestSupervisorLoopsFileAtEOF(t *testing.T) {
	source := &fakeSource{
		readErrs: []error{io.EOF, nil},
	}
	s, _ := newTestSupervisor(source, KindFile)

	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, 1, source.rewinds)
	assert.True(t, s.Connected())
}

func TestSupervisorReopensFileWhenRewindKeepsFailing(t *testing.T) {
	source := &fakeSource{
		readErrs:  []error{io.EOF},
		rewindErr: errBroken,
	}
	s, clock := newTestSupervisor(source, KindFile)

	_, err := s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.Equal(t, 2, source.rewinds)
	assert.Equal(t, 1, source.closes)
	assert.False(t, s.Connected())

	// File sources come back faster than network ones.
	clock.advance(fileReconnectDelay)
	frame, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, 2, source.opens)
}

func TestSupervisorOnReconnectCallback(t *testing.T) {
	source := &fakeSource{
		openErrs: []error{errBroken},
	}
	s, _ := newTestSupervisor(source, KindRTSP)

	calls := 0
	s.OnReconnect = func() { calls++ }

	_, err := s.Next()
	assert.Equal(t, ErrNoFrame, err)
	assert.Equal(t, 1, calls)
}

func TestSupervisorClose(t *testing.T) {
	source := &fakeSource{}
	s, _ := newTestSupervisor(source, KindRTSP)

	_, err := s.Next()
	require.NoError(t, err)

	s.Close()
	assert.False(t, s.Connected())
	assert.Equal(t, 1, source.closes)

	s.Close()
	assert.Equal(t, 1, source.closes, "second close is a no-op")
}
