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
	"errors"
	"fmt"
	"image"
	"log"
)

const (
	ModeCoordinates   = "coordinates"
	ModePointQuadrant = "point-quadrant"
)

// Region is the rectangular sub-area of a frame examined for
// detections. A resolved region always fits inside the frame it was
// resolved against and is at least 1x1.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X, r.Y, r.Width, r.Height)
}

type Config struct {
	UseFullFrame bool   `yaml:"use-full-frame"`
	Mode         string `yaml:"mode"`

	// Mode "coordinates"
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Mode "point-quadrant". The point and a frame corner span the
	// region: 1=top-right, 2=top-left, 3=bottom-left, 4=bottom-right.
	PointX   int `yaml:"point-x"`
	PointY   int `yaml:"point-y"`
	Quadrant int `yaml:"quadrant"`
}

func DefaultConfig() Config {
	return Config{
		Mode:     ModePointQuadrant,
		X:        800,
		Y:        500,
		Width:    550,
		Height:   580,
		PointX:   450,
		PointY:   400,
		Quadrant: 4,
	}
}

func (conf *Config) Validate() error {
	if conf.Mode != ModeCoordinates && conf.Mode != ModePointQuadrant {
		return fmt.Errorf("unknown region mode %q", conf.Mode)
	}
	if conf.Mode == ModeCoordinates && (conf.Width < 1 || conf.Height < 1) {
		return errors.New("region width and height must be at least 1")
	}
	return nil
}

// NewResolver returns a Resolver for the given configuration. The
// resolver caches its result per frame size so the clamp warning for a
// misconfigured region is logged once, not on every frame.
func NewResolver(conf Config) *Resolver {
	return &Resolver{conf: conf}
}

type Resolver struct {
	conf Config

	lastWidth  int
	lastHeight int
	lastRegion Region
}

// Resolve computes the detection/display region for a frame of the
// given dimensions.
func (r *Resolver) Resolve(frameWidth, frameHeight int) Region {
	if frameWidth == r.lastWidth && frameHeight == r.lastHeight && r.lastWidth != 0 {
		return r.lastRegion
	}

	reg := resolve(r.conf, frameWidth, frameHeight)
	r.lastWidth = frameWidth
	r.lastHeight = frameHeight
	r.lastRegion = reg
	return reg
}

func resolve(conf Config, frameWidth, frameHeight int) Region {
	if conf.UseFullFrame {
		return Region{X: 0, Y: 0, Width: frameWidth, Height: frameHeight}
	}

	var reg Region
	switch conf.Mode {
	case ModeCoordinates:
		reg = Region{X: conf.X, Y: conf.Y, Width: conf.Width, Height: conf.Height}
	default:
		reg = fromPointQuadrant(conf.PointX, conf.PointY, conf.Quadrant, frameWidth, frameHeight)
	}

	clamped := clamp(reg, frameWidth, frameHeight)
	if clamped != reg {
		log.Printf("region adjusted to fit frame: frame=%dx%d, original=%v, clamped=%v",
			frameWidth, frameHeight, reg, clamped)
	}
	return clamped
}

func fromPointQuadrant(px, py, quadrant, frameWidth, frameHeight int) Region {
	switch quadrant {
	case 1: // top right: point is the bottom-left corner of the region
		return Region{X: px, Y: 0, Width: frameWidth - px, Height: py}
	case 2: // top left: point is the bottom-right corner
		return Region{X: 0, Y: 0, Width: px, Height: py}
	case 3: // bottom left: point is the top-right corner
		return Region{X: 0, Y: py, Width: px, Height: frameHeight - py}
	case 4: // bottom right: point is the top-left corner
		return Region{X: px, Y: py, Width: frameWidth - px, Height: frameHeight - py}
	default:
		log.Printf("invalid quadrant %d, defaulting to quadrant 4 (bottom right)", quadrant)
		return Region{X: px, Y: py, Width: frameWidth - px, Height: frameHeight - py}
	}
}

// clamp fits a region into the frame. Width/height are clamped to the
// frame first, then position is clamped so the region still fits.
func clamp(reg Region, frameWidth, frameHeight int) Region {
	reg.Width = max(1, min(reg.Width, frameWidth))
	reg.Height = max(1, min(reg.Height, frameHeight))
	reg.X = max(0, min(reg.X, frameWidth-reg.Width))
	reg.Y = max(0, min(reg.Y, frameHeight-reg.Height))
	return reg
}
