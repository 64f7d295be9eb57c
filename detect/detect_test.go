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

package detect

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFingerprintStable(t *testing.T) {
	a := makeImage(100, 80, color.RGBA{120, 50, 30, 255})
	b := makeImage(100, 80, color.RGBA{120, 50, 30, 255})

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := makeImage(100, 80, color.RGBA{120, 50, 30, 255})
	b := makeImage(100, 80, color.RGBA{10, 200, 90, 255})

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprintNilImage(t *testing.T) {
	_, err := Fingerprint(nil)
	assert.Error(t, err)
}

func TestCacheHit(t *testing.T) {
	cache := new(ResultCache)
	result := Result{
		Triggered:    true,
		RegionWidth:  550,
		RegionHeight: 580,
		Fingerprint:  "abc",
	}
	cache.Store(result)

	got, ok := cache.Lookup("abc", 550, 580)
	assert.True(t, ok)
	assert.Equal(t, result, got)
}

func TestCacheMissOnFingerprint(t *testing.T) {
	cache := new(ResultCache)
	cache.Store(Result{RegionWidth: 550, RegionHeight: 580, Fingerprint: "abc"})

	_, ok := cache.Lookup("def", 550, 580)
	assert.False(t, ok)
}

func TestCacheMissOnRegionSizeChange(t *testing.T) {
	cache := new(ResultCache)
	cache.Store(Result{RegionWidth: 550, RegionHeight: 580, Fingerprint: "abc"})

	// Same fingerprint, different region size: a config change mid-run
	// must invalidate even on a coincidental hash match.
	_, ok := cache.Lookup("abc", 640, 480)
	assert.False(t, ok)
}

func TestCacheIgnoresUnfingerprintedResults(t *testing.T) {
	cache := new(ResultCache)
	cache.Store(Result{RegionWidth: 550, RegionHeight: 580, Fingerprint: "abc"})
	cache.Store(Result{RegionWidth: 550, RegionHeight: 580}) // hashing failed

	_, ok := cache.Lookup("abc", 550, 580)
	assert.False(t, ok)
}

func TestTriggered(t *testing.T) {
	conf := DefaultConfig()
	set := conf.TriggerSet()

	assert.False(t, Triggered(nil, set))
	assert.False(t, Triggered([]Detection{{ClassID: 0}}, set)) // person
	assert.True(t, Triggered([]Detection{{ClassID: 0}, {ClassID: 2}}, set))
	assert.True(t, Triggered([]Detection{{ClassID: 28}}, set))
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	assert.NoError(t, conf.Validate())

	conf.IntervalSeconds = 0
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.ConfidenceThreshold = 1.5
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.TriggerClasses = nil
	assert.Error(t, conf.Validate())
}
