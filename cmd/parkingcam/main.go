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
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/parkingcam/parkingcam/detect"
	"github.com/parkingcam/parkingcam/events"
	"github.com/parkingcam/parkingcam/metrics"
	"github.com/parkingcam/parkingcam/pipeline"
	"github.com/parkingcam/parkingcam/region"
	"github.com/parkingcam/parkingcam/stream"
	"github.com/parkingcam/parkingcam/throttle"
)

const (
	targetHz  = 15
	cycleTime = time.Second / targetHz

	cyclesPerSdNotify = 5 * targetHz

	frameLogIntervalFirstMin = 15 * targetHz
	frameLogInterval         = 60 * 5 * targetHz
)

var version = "<not set>"

type Args struct {
	ConfigFile       string  `arg:"-c,--config" help:"path to configuration file"`
	Timestamps       bool    `arg:"-t,--timestamps" help:"include timestamps in log output"`
	TestFile         string  `arg:"-f,--testfile" help:"run a video file through the pipeline and report occupancy statistics"`
	Verbose          bool    `arg:"-v,--verbose" help:"make logging more verbose"`
	Snapshot         int     `arg:"--snapshot" help:"capture this many stills with detection results, then exit"`
	SnapshotInterval float64 `arg:"--snapshot-interval" help:"seconds between captured stills"`
	OutputDir        string  `arg:"-o,--output" help:"directory for captured stills"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/parkingcam.yaml"
	args.SnapshotInterval = 1.0
	args.OutputDir = "."
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()

	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	if err := stream.CheckFFmpeg(); err != nil {
		return err
	}

	detector := detect.NewRemoteDetector(conf.Detect)
	if err := detector.Ping(); err != nil {
		return err
	}

	if args.TestFile != "" {
		results, err := NewPlaybackTester(conf, detector).Run(args.TestFile)
		if err != nil {
			return err
		}
		log.Printf("frames: %d  cycles: %d  cache hits: %d  triggered: %d  transitions: %d",
			results.frames, results.cycles, results.cacheHits, results.triggered, results.transitions)
		return nil
	}

	if args.Snapshot > 0 {
		return runSnapshotMode(conf, detector, args.Snapshot, args.SnapshotInterval, args.OutputDir)
	}

	m := metrics.New()
	if conf.Metrics.ListenAddr != "" {
		log.Printf("metrics listening on %s", conf.Metrics.ListenAddr)
		go func() {
			if err := m.Serve(conf.Metrics.ListenAddr); err != nil {
				log.Printf("metrics listener failed: %v", err)
			}
		}()
	}

	notifier, err := buildNotifier(conf)
	if err != nil {
		return err
	}
	defer notifier.Close()

	scheduler := pipeline.NewScheduler(detector, conf.Detect, conf.Presence, notifier, m)
	resolver := region.NewResolver(conf.Region)

	source, err := stream.NewSource(conf.Stream)
	if err != nil {
		return err
	}
	if reporter, ok := source.(stream.DecodeErrorReporter); ok {
		reporter.SetOnDecodeError(func() { m.DecodeFailures.Add(1) })
	}
	supervisor := stream.NewSupervisor(source, conf.Stream.Kind)
	supervisor.OnReconnect = func() { m.Reconnects.Add(1) }
	defer supervisor.Close()

	holder := newFrameHolder()
	var renderer Renderer = nullRenderer{}
	if args.Verbose {
		renderer = &logRenderer{}
	}

	log.Println("starting d-bus service")
	if err := startService(scheduler, holder, resolver, args.OutputDir); err != nil {
		// Not fatal: the daemon is useful without its control surface.
		log.Printf("d-bus service failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon.SdNotify(false, "READY=1")
	log.Println("watching the spot")
	runLoop(ctx, supervisor, resolver, scheduler, holder, renderer, m)

	log.Println("shutting down")
	scheduler.Wait()
	return nil
}

// runLoop is the acquisition loop: read a frame, offer it to the
// scheduler, sleep out the remainder of the cycle. It never blocks on
// detection; frameless cycles still tick the scheduler so a dead
// stream decays toward absent.
func runLoop(
	ctx context.Context,
	supervisor *stream.Supervisor,
	resolver *region.Resolver,
	scheduler *pipeline.Scheduler,
	holder *frameHolder,
	renderer Renderer,
	m *metrics.Metrics,
) {
	var cycles, frameCount uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cycleStart := time.Now()

		frame, err := supervisor.Next()
		if err == nil {
			m.FramesRead.Add(1)
			frameCount++
			reg := resolver.Resolve(frame.Width(), frame.Height())
			scheduler.Tick(frame.Crop(reg.Rect()))
			holder.set(frame)
			renderer.Render(frame, reg, scheduler.Snapshot())

			if frameCount < frameLogInterval {
				if frameCount%frameLogIntervalFirstMin == 0 {
					log.Printf("%d frames read", frameCount)
				}
			} else if frameCount%frameLogInterval == 0 {
				log.Printf("%d frames read", frameCount)
			}
		} else {
			m.FramelessCycles.Add(1)
			scheduler.Tick(nil)
		}

		if cycles++; cycles%cyclesPerSdNotify == 0 {
			daemon.SdNotify(false, "WATCHDOG=1")
		}

		if remainder := cycleTime - time.Since(cycleStart); remainder > 0 {
			time.Sleep(remainder)
		}
	}
}

func buildNotifier(conf *Config) (events.Notifier, error) {
	notifiers := events.Multi{events.LogNotifier{}}
	if conf.MQTT.Enabled {
		mqttNotifier, err := events.NewMQTTNotifier(conf.MQTT)
		if err != nil {
			return nil, err
		}
		log.Printf("publishing occupancy transitions to %s", conf.MQTT.Topic)
		notifiers = append(notifiers, mqttNotifier)
	}
	if conf.Throttler.ApplyThrottling {
		return throttle.NewThrottledNotifier(notifiers, conf.Throttler), nil
	}
	return notifiers, nil
}

func logConfig(conf *Config) {
	log.Printf("source: %s", sourceDescription(conf))
	log.Printf("region: %+v", conf.Region)
	log.Printf("detector: %s (interval %.1fs, confidence %.2f, classes %v)",
		conf.Detect.ServerAddr, conf.Detect.IntervalSeconds,
		conf.Detect.ConfidenceThreshold, conf.Detect.TriggerClasses)
	log.Printf("presence: history %d, present at %d, absent at %d, smoothing %d cycles",
		conf.Presence.HistorySize, conf.Presence.PresentThreshold,
		conf.Presence.AbsentThreshold, conf.Presence.SmoothingCycles)
	if conf.MQTT.Enabled {
		log.Printf("mqtt: %s topic %s", conf.MQTT.Broker, conf.MQTT.Topic)
	}
}

func sourceDescription(conf *Config) string {
	if conf.Stream.Kind == stream.KindFile {
		return "file " + conf.Stream.Path
	}
	return "rtsp " + conf.Stream.URL
}
