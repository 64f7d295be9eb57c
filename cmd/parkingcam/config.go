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
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/parkingcam/parkingcam/detect"
	"github.com/parkingcam/parkingcam/events"
	"github.com/parkingcam/parkingcam/metrics"
	"github.com/parkingcam/parkingcam/presence"
	"github.com/parkingcam/parkingcam/region"
	"github.com/parkingcam/parkingcam/stream"
	"github.com/parkingcam/parkingcam/throttle"
)

type Config struct {
	Stream    stream.Config     `yaml:"stream"`
	Region    region.Config     `yaml:"region"`
	Detect    detect.Config     `yaml:"detect"`
	Presence  presence.Config   `yaml:"presence"`
	MQTT      events.MQTTConfig `yaml:"mqtt"`
	Throttler throttle.Config   `yaml:"throttler"`
	Metrics   metrics.Config    `yaml:"metrics"`
}

var defaultConfig = Config{
	Stream:    stream.DefaultConfig(),
	Region:    region.DefaultConfig(),
	Detect:    detect.DefaultConfig(),
	Presence:  presence.DefaultConfig(),
	MQTT:      events.DefaultMQTTConfig(),
	Throttler: throttle.DefaultConfig(),
	Metrics:   metrics.DefaultConfig(),
}

func (conf *Config) Validate() error {
	if err := conf.Stream.Validate(); err != nil {
		return err
	}
	if err := conf.Region.Validate(); err != nil {
		return err
	}
	if err := conf.Detect.Validate(); err != nil {
		return err
	}
	if err := conf.Presence.Validate(); err != nil {
		return err
	}
	return conf.MQTT.Validate()
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

// ParseConfig overlays the file onto the defaults so a sparse config
// only has to mention what differs.
func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
