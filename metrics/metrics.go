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

package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	ListenAddr string `yaml:"listen-addr"` // empty disables the listener
}

func DefaultConfig() Config {
	return Config{}
}

// Metrics counts what the pipeline does. Counters are plain atomics so
// the hot paths never touch prometheus directly; the registry reads
// them lazily when scraped.
type Metrics struct {
	FramesRead      atomic.Uint64
	DecodeFailures  atomic.Uint64
	FramelessCycles atomic.Uint64
	Reconnects      atomic.Uint64
	DetectionRuns   atomic.Uint64
	CacheHits       atomic.Uint64
	DetectorErrors  atomic.Uint64
	Notifications   atomic.Uint64
	Occupied        atomic.Uint64 // 0 = absent, 1 = present

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	counters := []struct {
		name string
		help string
		load func() uint64
	}{
		{"parkingcam_frames_read_total", "Total frames read from the stream", m.FramesRead.Load},
		{"parkingcam_decode_failures_total", "Frames that failed to decode", m.DecodeFailures.Load},
		{"parkingcam_frameless_cycles_total", "Detection cycles with no frame available", m.FramelessCycles.Load},
		{"parkingcam_reconnects_total", "Stream reconnect attempts scheduled", m.Reconnects.Load},
		{"parkingcam_detection_runs_total", "Detector invocations", m.DetectionRuns.Load},
		{"parkingcam_cache_hits_total", "Detection cycles answered from the result cache", m.CacheHits.Load},
		{"parkingcam_detector_errors_total", "Detector calls that failed", m.DetectorErrors.Load},
		{"parkingcam_notifications_total", "Occupancy transition notifications sent", m.Notifications.Load},
		{"parkingcam_occupied", "Current occupancy state (0=absent, 1=present)", m.Occupied.Load},
	}
	for _, c := range counters {
		load := c.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(load()) },
		))
	}
}

// The pipeline reports through these; they satisfy its Observer
// interface.

func (m *Metrics) DetectionRun()     { m.DetectionRuns.Add(1) }
func (m *Metrics) CacheHit()         { m.CacheHits.Add(1) }
func (m *Metrics) DetectorError()    { m.DetectorErrors.Add(1) }
func (m *Metrics) NotificationSent() { m.Notifications.Add(1) }

func (m *Metrics) Presence(occupied bool) {
	if occupied {
		m.Occupied.Store(1)
	} else {
		m.Occupied.Store(0)
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics listener. Blocks; run on its own goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
