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

package frames

import (
	"image"
	"image/draw"
	"time"
)

// Frame is a single decoded video frame. The acquisition loop owns the
// pixel buffer for one processing cycle; anything that holds on to a
// frame for longer (the background detection task) must work from a
// Copy.
type Frame struct {
	Pix       *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

// FromImage converts a decoded image into a Frame, normalising the
// pixel format to RGBA.
func FromImage(img image.Image, seq uint64, ts time.Time) *Frame {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Frame{Pix: rgba, Seq: seq, Timestamp: ts}
}

func (f *Frame) Width() int  { return f.Pix.Bounds().Dx() }
func (f *Frame) Height() int { return f.Pix.Bounds().Dy() }

// Copy returns a frame with its own pixel buffer so the source may
// reuse the original for the next read.
func (f *Frame) Copy() *Frame {
	dst := image.NewRGBA(f.Pix.Bounds())
	copy(dst.Pix, f.Pix.Pix)
	return &Frame{Pix: dst, Seq: f.Seq, Timestamp: f.Timestamp}
}

// Crop returns the sub-image for the given rectangle as a standalone
// RGBA buffer. The rectangle must already be clamped to the frame.
func (f *Frame) Crop(r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), f.Pix, r.Min, draw.Src)
	return dst
}
