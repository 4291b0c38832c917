// Command simulate plays a courier: it logs in and reports a fixed route
// for one delivery, one point per interval.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/99minutos/courier-tracking/pkg/logger"
	"github.com/99minutos/courier-tracking/pkg/tracker"
)

type point struct {
	lat, lng float64
}

// route is a short run north-east through central São Paulo.
var route = []point{
	{-23.5605, -46.6433},
	{-23.5580, -46.6400},
	{-23.5555, -46.6370},
	{-23.5530, -46.6350},
	{-23.5510, -46.6340},
	{-23.5490, -46.6320},
	{-23.5470, -46.6300},
	{-23.5450, -46.6280},
	{-23.5430, -46.6260},
	{-23.5410, -46.6240},
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("TRACKING_API_URL", "http://localhost:8080"), "tracking API base URL")
	deliveryID := flag.String("delivery", "", "delivery id assigned to the courier (required)")
	email := flag.String("email", os.Getenv("TRACKING_EMAIL"), "courier email")
	password := flag.String("password", os.Getenv("TRACKING_PASSWORD"), "courier password")
	interval := flag.Duration("interval", 3*time.Second, "pause between reports")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logger.Init(logger.Options{Level: *logLevel, Pretty: true, Service: "tracking-simulate"})

	if *deliveryID == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tracker.NewClient(*apiURL, nil)
	if _, err := client.Login(ctx, *email, *password); err != nil {
		log.Fatal().Err(err).Str("email", *email).Msg("login failed")
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for i, p := range route {
		loc, err := client.PostLocation(ctx, *deliveryID, p.lat, p.lng)
		if err != nil {
			// A rejected report is not fatal; the next point may still land.
			log.Error().Err(err).Int("point", i+1).Msg("report failed")
		} else {
			log.Info().
				Int("point", i+1).
				Int("of", len(route)).
				Str("location_id", loc.ID).
				Float64("lat", p.lat).
				Float64("lng", p.lng).
				Msg("position reported")
		}

		if i == len(route)-1 {
			break
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("interrupted")
			return
		case <-ticker.C:
		}
	}
	log.Info().Msg("route complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
