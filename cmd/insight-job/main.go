// insight-job is the scheduled ingestion job. Invoked with no flags it
// processes the current UTC day; --date processes one day and
// --start-date/--end-date an inclusive range.
//
//	insight-job
//	insight-job --date 2025-04-20
//	insight-job --start-date 2024-04-10 --end-date 2024-04-23
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanju9645/sumo-insight-backend/internal/app/migrate"
	"github.com/sanju9645/sumo-insight-backend/internal/config"
	"github.com/sanju9645/sumo-insight-backend/internal/logger"
	"github.com/sanju9645/sumo-insight-backend/internal/repository/postgres"
	"github.com/sanju9645/sumo-insight-backend/internal/service/content"
	"github.com/sanju9645/sumo-insight-backend/internal/service/ingest"
	"github.com/sanju9645/sumo-insight-backend/internal/service/notify"
	"github.com/sanju9645/sumo-insight-backend/internal/sumologic"
)

func main() {
	var (
		dateFlag    = flag.String("date", "", "single day to process (YYYY-MM-DD)")
		startFlag   = flag.String("start-date", "", "first day of an inclusive range (YYYY-MM-DD)")
		endFlag     = flag.String("end-date", "", "last day of an inclusive range (YYYY-MM-DD)")
		migrateOnly = flag.Bool("migrate-only", false, "apply schema migrations and exit")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New("insight-job", logger.ParseLevel(cfg.LogLevel))

	if cfg.SumoAccessID == "" || cfg.SumoAccessKey == "" {
		log.Error("sumo logic credentials not provided")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	if *migrateOnly {
		return
	}

	repo := postgres.New(pool)

	search, err := sumologic.New(cfg.SumoBaseURL, cfg.SumoAccessID, cfg.SumoAccessKey, log,
		sumologic.WithPollInterval(cfg.PollInterval),
		sumologic.WithMaxPollAttempts(cfg.MaxPollAttempts),
		sumologic.WithPageSize(cfg.FetchPageSize),
	)
	if err != nil {
		log.Error("failed to configure search client", "error", err)
		os.Exit(1)
	}

	var generator content.Generator = content.Static{}
	if cfg.ContentGeneratorURL != "" {
		generator = content.NewHTTP(cfg.ContentGeneratorURL, cfg.ContentGeneratorKey)
	}
	var email notify.EmailSender
	if cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	}
	var voice notify.VoiceCaller
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		voice = notify.NewTwilioCaller(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}
	dispatcher := notify.NewDispatcher(generator, email, voice, log)

	svc := ingest.New(search, repo, repo, repo, dispatcher, log, cfg)

	if err := run(ctx, svc, log, *dateFlag, *startFlag, *endFlag); err != nil {
		log.Error("insight job failed", "error", err)
		os.Exit(1)
	}
}

// run selects the single-day or range mode from the flags. Flag and range
// validation errors are fatal; per-day pipeline failures are logged inside
// the service and leave the exit code at zero.
func run(ctx context.Context, svc ingest.Service, log *slog.Logger, dateFlag, startFlag, endFlag string) error {
	switch {
	case startFlag != "" || endFlag != "":
		if startFlag == "" || endFlag == "" {
			return fmt.Errorf("start-date and end-date must be provided together")
		}
		start, err := parseDay(startFlag)
		if err != nil {
			return fmt.Errorf("invalid start-date: %w", err)
		}
		end, err := parseDay(endFlag)
		if err != nil {
			return fmt.Errorf("invalid end-date: %w", err)
		}
		return svc.ProcessRange(ctx, start, end)

	case dateFlag != "":
		day, err := parseDay(dateFlag)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		if err := svc.ProcessDay(ctx, day); err != nil {
			log.Error("day processing failed", "date", dateFlag, "error", err)
		}
		return nil

	default:
		today := time.Now().UTC()
		if err := svc.ProcessDay(ctx, today); err != nil {
			log.Error("day processing failed", "date", today.Format("2006-01-02"), "error", err)
		}
		return nil
	}
}

func parseDay(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
