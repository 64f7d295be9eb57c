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

package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	frameW = 1920
	frameH = 1080
)

func TestFullFrameBypassesSelection(t *testing.T) {
	conf := DefaultConfig()
	conf.UseFullFrame = true
	conf.Mode = ModeCoordinates
	conf.X = 5000 // would be badly out of bounds if it were used

	reg := NewResolver(conf).Resolve(frameW, frameH)
	assert.Equal(t, Region{0, 0, frameW, frameH}, reg)
}

func TestExplicitCoordinates(t *testing.T) {
	conf := DefaultConfig()
	conf.Mode = ModeCoordinates
	conf.X, conf.Y, conf.Width, conf.Height = 800, 500, 550, 580

	reg := NewResolver(conf).Resolve(frameW, frameH)
	assert.Equal(t, Region{800, 500, 550, 580}, reg)
}

func TestQuadrants(t *testing.T) {
	cases := []struct {
		quadrant int
		expected Region
	}{
		{1, Region{450, 0, frameW - 450, 400}},
		{2, Region{0, 0, 450, 400}},
		{3, Region{0, 400, 450, frameH - 400}},
		{4, Region{450, 400, frameW - 450, frameH - 400}},
		{7, Region{450, 400, frameW - 450, frameH - 400}}, // unknown falls back to 4
	}
	for _, c := range cases {
		conf := DefaultConfig()
		conf.Quadrant = c.quadrant
		reg := NewResolver(conf).Resolve(frameW, frameH)
		assert.Equal(t, c.expected, reg, "quadrant %d", c.quadrant)
	}
}

func TestQuadrantResolutionIsDeterministic(t *testing.T) {
	conf := DefaultConfig()
	first := resolve(conf, frameW, frameH)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, resolve(conf, frameW, frameH))
	}
}

func TestClampInvariants(t *testing.T) {
	cases := []Config{
		{Mode: ModeCoordinates, X: -50, Y: -50, Width: 100, Height: 100},
		{Mode: ModeCoordinates, X: 1900, Y: 1000, Width: 500, Height: 500},
		{Mode: ModeCoordinates, X: 0, Y: 0, Width: 5000, Height: 5000},
		{Mode: ModeCoordinates, X: 2500, Y: 1500, Width: 10, Height: 10},
		{Mode: ModePointQuadrant, PointX: 2500, PointY: 1500, Quadrant: 4},
		{Mode: ModePointQuadrant, PointX: -10, PointY: -10, Quadrant: 2},
	}

	for _, conf := range cases {
		reg := resolve(conf, frameW, frameH)
		assert.GreaterOrEqual(t, reg.X, 0)
		assert.GreaterOrEqual(t, reg.Y, 0)
		assert.GreaterOrEqual(t, reg.Width, 1)
		assert.GreaterOrEqual(t, reg.Height, 1)
		assert.LessOrEqual(t, reg.X+reg.Width, frameW)
		assert.LessOrEqual(t, reg.Y+reg.Height, frameH)
	}
}

func TestSizeClampTakesPrecedenceOverPosition(t *testing.T) {
	// Oversized region at an offset: width/height are clamped to the
	// frame first, which forces the position back to the origin.
	conf := Config{Mode: ModeCoordinates, X: 100, Y: 100, Width: 5000, Height: 5000}
	reg := resolve(conf, frameW, frameH)
	assert.Equal(t, Region{0, 0, frameW, frameH}, reg)
}

func TestResolverCachesPerFrameSize(t *testing.T) {
	conf := DefaultConfig()
	r := NewResolver(conf)

	a := r.Resolve(frameW, frameH)
	b := r.Resolve(frameW, frameH)
	assert.Equal(t, a, b)

	// A dimension change forces a recompute.
	c := r.Resolve(640, 480)
	assert.NotEqual(t, a, c)
}

func TestValidate(t *testing.T) {
	conf := DefaultConfig()
	assert.NoError(t, conf.Validate())

	conf.Mode = "bogus"
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.Mode = ModeCoordinates
	conf.Width = 0
	assert.Error(t, conf.Validate())
}
