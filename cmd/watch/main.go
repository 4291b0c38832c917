// Command watch follows one delivery from the viewer side: it loads the
// track, subscribes to live positions and prints the derived progress on
// every change until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/99minutos/courier-tracking/pkg/logger"
	"github.com/99minutos/courier-tracking/pkg/tracker"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("TRACKING_API_URL", "http://localhost:8080"), "tracking API base URL")
	deliveryID := flag.String("delivery", "", "delivery id to follow (required)")
	email := flag.String("email", os.Getenv("TRACKING_EMAIL"), "login email, ignored when -token is set")
	password := flag.String("password", os.Getenv("TRACKING_PASSWORD"), "login password")
	token := flag.String("token", os.Getenv("TRACKING_TOKEN"), "bearer token")
	interval := flag.Duration("interval", tracker.DefaultInterval, "full re-fetch period")
	thresholdsPath := flag.String("thresholds", "", "YAML file overriding the progress thresholds")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logger.Init(logger.Options{Level: *logLevel, Pretty: true, Service: "tracking-watch"})

	if *deliveryID == "" {
		flag.Usage()
		os.Exit(2)
	}

	th := tracker.DefaultThresholds()
	if *thresholdsPath != "" {
		var err error
		if th, err = tracker.LoadThresholds(*thresholdsPath); err != nil {
			log.Fatal().Err(err).Str("path", *thresholdsPath).Msg("failed to load thresholds")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tracker.NewClient(*apiURL, nil)
	if *token != "" {
		client.SetToken(*token)
	} else {
		if _, err := client.Login(ctx, *email, *password); err != nil {
			log.Fatal().Err(err).Str("email", *email).Msg("login failed")
		}
	}

	engine := tracker.NewEngine(client, *deliveryID, tracker.Options{
		Interval:   *interval,
		Thresholds: th,
		OnUpdate:   printSnapshot,
	}, log)
	engine.Start(ctx)

	log.Info().Str("delivery_id", *deliveryID).Dur("interval", *interval).Msg("watching delivery")

	<-ctx.Done()
	engine.Close()
	log.Info().Str("state", engine.Snapshot().State.String()).Msg("stopped")
}

func printSnapshot(s tracker.Snapshot) {
	if s.Delivery == nil {
		fmt.Printf("[%s] %d positions, delivery detail pending\n", s.State, len(s.Locations))
		return
	}
	d := s.Delivery
	courier := d.CourierName
	if courier == "" {
		courier = "unassigned"
	}
	updated := "never"
	if s.Progress.HasPosition {
		updated = s.Progress.LastUpdate.Local().Format(time.TimeOnly)
	}
	fmt.Printf("[%s] %s  %s  courier=%s  positions=%d  last=%s  %s\n",
		s.State, d.ID, d.Status, courier, len(s.Locations), updated, s.Progress)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
