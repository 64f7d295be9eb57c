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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRTSPURL(t *testing.T) {
	assert.Equal(t, "rtsp://cam.local/stream", normalizeRTSPURL("cam.local/stream"))
	assert.Equal(t, "rtsp://cam.local/stream", normalizeRTSPURL("rtsp://cam.local/stream"))
	assert.Equal(t, "rtsp://cam.local/stream", normalizeRTSPURL("  cam.local/stream"))
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	conf.URL = "cam.local/stream"
	assert.NoError(t, conf.Validate())

	conf = DefaultConfig()
	assert.Error(t, conf.Validate(), "rtsp kind needs a url")

	conf = DefaultConfig()
	conf.Kind = KindFile
	assert.Error(t, conf.Validate(), "file kind needs a path")
	conf.Path = "clip.mp4"
	assert.NoError(t, conf.Validate())

	conf = DefaultConfig()
	conf.Kind = "webcam"
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.URL = "cam.local/stream"
	conf.ReadTimeoutSeconds = 0
	assert.Error(t, conf.Validate())
}

func TestNewSourceArgs(t *testing.T) {
	conf := DefaultConfig()
	conf.URL = "cam.local/stream"
	source, err := NewSource(conf)
	require.NoError(t, err)
	fs, ok := source.(*ffmpegSource)
	require.True(t, ok)
	assert.Equal(t, []string{
		"-rtsp_transport", "tcp",
		"-i", "rtsp://cam.local/stream",
		"-an",
		"-c:v", "bmp",
		"-f", "image2pipe",
		"-",
	}, fs.args)

	conf = DefaultConfig()
	conf.Kind = KindFile
	conf.Path = "clip.mp4"
	source, err = NewSource(conf)
	require.NoError(t, err)
	fs = source.(*ffmpegSource)
	assert.Equal(t, "-re", fs.args[0], "file playback runs at native rate")
	_, ok = source.(Rewinder)
	assert.True(t, ok, "file sources can rewind")

	conf.Kind = "webcam"
	_, err = NewSource(conf)
	assert.Error(t, err)
}
