// Command groundstation runs the drone follow-mode ground station: GPS
// source arbitration, person-lock tracking, the follow control loop, camera
// stream supervision, and the HTTP control surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corvid-aero/groundstation/internal/api"
	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/gpslog"
	"github.com/corvid-aero/groundstation/internal/nmea"
	"github.com/corvid-aero/groundstation/internal/stream"
	"github.com/corvid-aero/groundstation/internal/timeutil"
	"github.com/corvid-aero/groundstation/internal/track"
	"github.com/corvid-aero/groundstation/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run with simulated camera and GPS fixtures")
	listen      = flag.String("listen", "", "Listen address (overrides the config file)")
	configPath  = flag.String("config", "groundstation.yaml", "Station config file")
	gpsSerial   = flag.String("gps-port", "", "GPS serial port path (overrides the config file)")
	gpsUDP      = flag.Int("gps-udp", -1, "GPS UDP listen port (overrides the config file, 0 disables)")
	dbFile      = flag.String("db", "", "GPS quality database path (overrides the config file)")
	fixtures    = flag.String("fixtures", "fixtures.nmea", "NMEA fixtures file replayed in dev mode")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// benchHome is where the simulated vehicle sits until commanded.
var benchHome = geo.Point{Lat: 37.7749, Lon: -122.4194}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("groundstation %s\n", version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *gpsSerial != "" {
		cfg.GPS.SerialPath = *gpsSerial
	}
	if *gpsUDP >= 0 {
		cfg.GPS.UDPPort = *gpsUDP
	}
	if *dbFile != "" {
		cfg.DBPath = *dbFile
	}

	// Subcommands run against the configured database and exit.
	if flag.Arg(0) == "migrate" {
		gpslog.RunMigrateCommand(flag.Args()[1:], cfg.DBPath)
		return
	}

	tuning, err := cfg.LoadTuning()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	clock := timeutil.RealClock{}
	registry := gps.NewRegistry(clock)
	arbitrator := gps.NewArbitrator(registry, clock, gps.ArbitratorConfigFromTuning(tuning))
	quality := gps.NewQualityTracker()
	events := eventlog.New(clock, 0)
	tracker := track.New(track.ConfigFromTuning(tuning), clock)

	// The simulated drivers are the only vehicle implementations so far, so
	// dev and production differ only in camera and GPS wiring.
	vehicle := drone.NewSimVehicle(clock, benchHome)
	gimbal := drone.NewSimGimbal()

	followCtl := follow.NewController(arbitrator, tracker, vehicle, gimbal, events, clock, follow.ConfigFromTuning(tuning))
	telemetry := drone.NewTelemetry(vehicle, events, clock, drone.TelemetryConfig{})

	var source stream.FrameSource
	var prober stream.HealthProber
	if *devMode {
		sim := stream.NewSimSource(clock)
		source, prober = sim, sim
	} else {
		cam := stream.NewHTTPSource(nil, cfg.Camera.FrameURL, cfg.Camera.StatusURL)
		source = cam
		if cfg.Camera.StatusURL != "" {
			prober = cam
		}
	}
	streamCfg := stream.SupervisorConfig{
		Source: source,
		Prober: prober,
		Events: events,
		Clock:  clock,
	}
	streamCfg.ApplyTuning(tuning)
	supervisor := stream.NewSupervisor(streamCfg)

	var gpsFeed nmea.Feed
	if *devMode {
		data, err := os.ReadFile(*fixtures)
		if err != nil {
			log.Printf("no GPS fixtures (%v); receiver feed disabled", err)
		} else {
			port := nmea.NewTestablePort()
			port.AddReadData(data)
			gpsFeed = nmea.NewMux[*nmea.TestablePort](port)
		}
	} else if cfg.GPS.SerialPath != "" {
		gpsFeed, err = nmea.NewSerialMux(cfg.GPS.SerialPath, nmea.PortOptions{BaudRate: cfg.GPS.BaudRate})
		if err != nil {
			log.Fatalf("Failed to open GPS serial port: %v", err)
		}
	} else if cfg.GPS.UDPPort > 0 {
		gpsFeed, err = nmea.NewUDPMux(cfg.GPS.UDPPort)
		if err != nil {
			log.Fatalf("Failed to listen for GPS datagrams: %v", err)
		}
	} else {
		log.Printf("no GPS receiver configured; laptop source disabled")
	}
	if gpsFeed != nil {
		defer gpsFeed.Close()
	}

	var store *gpslog.Store
	if cfg.DBPath != "" {
		store, err = gpslog.OpenAndMigrate(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open quality database: %v", err)
		}
		defer store.Close()
	}

	log.Printf("groundstation %s starting: listen=%s dev=%v db=%q", version.String(), cfg.Listen, *devMode, cfg.DBPath)
	events.Append(eventlog.ComponentSystem, eventlog.LevelInfo, "ground station started")

	// Create a wait group for the control loop, GPS feed, recorder, and HTTP
	// server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var receiver *nmea.Receiver
	if gpsFeed != nil {
		receiver = nmea.NewReceiver(registry, quality, events, clock)

		// run the monitor routine to manage IO on the GPS port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gpsFeed.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor GPS port: %v", err)
			}
			log.Print("gps monitor routine terminated")
		}()

		// parse sentences from the feed into the registry
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := receiver.Run(ctx, gpsFeed); err != nil && err != context.Canceled {
				log.Printf("gps receiver error: %v", err)
			}
			log.Print("gps receiver routine terminated")
		}()
	}

	// follow control loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := followCtl.Run(ctx); err != nil {
			log.Printf("follow controller error: %v", err)
		}
		log.Print("follow routine terminated")
	}()

	// vehicle telemetry poll feeding the status surface
	wg.Add(1)
	go func() {
		defer wg.Done()
		telemetry.Run(ctx)
		log.Print("telemetry routine terminated")
	}()

	// periodic GPS quality snapshots, only useful with a live receiver
	if store != nil && gpsFeed != nil {
		recorder := gpslog.NewRecorder(gpslog.RecorderConfig{
			Store:   store,
			Tracker: quality,
			Source:  gps.SourceLaptop,
			Clock:   clock,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(ctx); err != nil {
				log.Printf("quality recorder error: %v", err)
			}
			log.Print("quality recorder routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(api.ServerConfig{
			Registry:   registry,
			Arbitrator: arbitrator,
			Tracker:    tracker,
			Follow:     followCtl,
			Vehicle:    vehicle,
			Supervisor: supervisor,
			Events:     events,
			Quality:    quality,
			Telemetry:  telemetry,
			Store:      store,
			Receiver:   receiver,
			Feed:       gpsFeed,
			Tuning:     tuning,
			Units:      cfg.Units,
			BaseCtx:    ctx,
			Clock:      clock,
		}).ServeMux()

		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	supervisor.Stop()
	log.Printf("Graceful shutdown complete")
}
