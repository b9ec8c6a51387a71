package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minagishl/google-calendar-tonton/internal/availability"
	"github.com/minagishl/google-calendar-tonton/internal/config"
	"github.com/minagishl/google-calendar-tonton/internal/ics"
	appLog "github.com/minagishl/google-calendar-tonton/internal/log"
	"github.com/minagishl/google-calendar-tonton/internal/model"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath   string
	schedulePath string
	from         string
	to           string
	dump         bool
	once         bool
	verbose      bool
}

func main() {
	flags := parseFlags()

	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"calendar_count", len(conf.Calendars),
		"cache_dir", conf.CacheDir,
		"horizon_days", conf.HorizonDays,
		"refresh", conf.RefreshCron,
		"auto_decline_weekends", conf.Policy.AutoDeclineWeekends,
		"enforce_working_hours", conf.Policy.EnforceWorkingHours,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// The availability cache outlives individual runs so that repeated
	// refreshes of an unchanged feed hit the memoized documents.
	cache := availability.New()
	fetcher := ics.NewFetcher(conf.CacheDir)

	run := func() {
		if err := runPipeline(ctx, conf, flags, fetcher, cache); err != nil {
			appLog.Error("pipeline run failed", err)
		}
	}

	if flags.once || conf.RefreshCron == "" {
		if err := runPipeline(ctx, conf, flags, fetcher, cache); err != nil {
			appLog.Error("pipeline run failed", err)
			os.Exit(1)
		}
		return
	}

	// Watch mode: re-run on the configured cron schedule.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, run); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	run()
	c.Start()
	<-ctx.Done()
	c.Stop()
	appLog.Info("tonton exiting")
}

// runPipeline fetches every configured feed, resolves its events over
// the window, and either dumps the merged events or matches them
// against the schedule file.
func runPipeline(ctx context.Context, conf *config.Config, flags flagConfig, fetcher *ics.Fetcher, cache *availability.Cache) error {
	windowStart, windowEnd, err := resolveWindow(flags, conf.HorizonDays)
	if err != nil {
		return err
	}

	sources := make([]ics.Source, 0, len(conf.Calendars))
	for _, cal := range conf.Calendars {
		sources = append(sources, ics.Source{ID: cal.ID, URL: cal.URL})
	}
	if len(sources) == 0 {
		return errors.New("no calendars configured")
	}

	results, errs := fetcher.FetchAll(ctx, sources)
	if len(results) == 0 {
		return fmt.Errorf("all %d feed fetches failed", len(errs))
	}

	var events []model.Event
	for _, res := range results {
		feedEvents, err := cache.GetEvents(string(res.Body), windowStart, windowEnd)
		if err != nil {
			// A malformed feed is terminal for that feed only.
			appLog.Error("feed parse failed", err, "id", res.Source.ID)
			continue
		}
		appLog.Info("feed resolved", "id", res.Source.ID, "event_count", len(feedEvents), "from_cache", res.FromCache)
		events = append(events, feedEvents...)
	}

	if flags.dump {
		return printJSON(events)
	}

	if flags.schedulePath == "" {
		appLog.Info("no schedule file given; nothing to match", "event_count", len(events))
		return nil
	}

	schedules, err := loadSchedules(flags.schedulePath)
	if err != nil {
		return err
	}

	result := availability.Match(schedules, events, conf.Policy)
	return printJSON(result)
}

func resolveWindow(flags flagConfig, horizonDays int) (time.Time, time.Time, error) {
	now := time.Now()
	windowStart := now
	windowEnd := now.Add(time.Duration(horizonDays) * 24 * time.Hour)

	if flags.from != "" {
		t, err := time.Parse(time.RFC3339, flags.from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
		windowStart = t
	}
	if flags.to != "" {
		t, err := time.Parse(time.RFC3339, flags.to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
		windowEnd = t
	}
	return windowStart, windowEnd, nil
}

// loadSchedules reads the scraping layer's output: a JSON list of
// per-date slot groups.
func loadSchedules(path string) ([]model.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	var schedules []model.Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}
	return schedules, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./tonton.yaml", "Path to config file")
	flag.StringVar(&cfg.schedulePath, "schedule", "", "Path to schedule JSON (per-date slot groups)")
	flag.StringVar(&cfg.from, "from", "", "Window start (RFC3339; default now)")
	flag.StringVar(&cfg.to, "to", "", "Window end (RFC3339; default now+horizon)")
	flag.BoolVar(&cfg.dump, "dump", false, "Dump merged normalized events as JSON and exit")
	flag.BoolVar(&cfg.once, "once", false, "Run one pipeline cycle and exit even if refresh is configured")
	flag.BoolVar(&cfg.verbose, "v", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
