package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schedbot/internal/academic"
	"schedbot/internal/catalog"
	"schedbot/internal/config"
	appLog "schedbot/internal/log"
	"schedbot/internal/model"
	"schedbot/internal/refresh"
	"schedbot/internal/schedule"
	"schedbot/internal/sheet"
	"schedbot/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dump       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Configure(os.Stderr, conf.Log.Format, appLog.ParseLevel(conf.Log.Level))
	appLog.Info("schedbot starting", "version", "0.1.0")

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"sheet_format", conf.Sheet.Format,
		"ranges", len(conf.Schedule.Ranges),
		"holiday_range", conf.Schedule.HolidayRange,
		"catalog", conf.Catalog.Driver,
		"parity_filter", conf.Schedule.ParityFilter,
		"once", flags.once,
		"dump", flags.dump,
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

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("schedbot failed", err)
		os.Exit(1)
	}
	appLog.Info("schedbot exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := conf.Location()
	reader := newReader(conf)

	source, closeCatalog, err := newCatalog(ctx, conf, reader)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() {
		if err := closeCatalog(); err != nil {
			appLog.Error("failed to close catalog", err)
		}
	}()

	engine := schedule.NewEngine(schedule.SystemClock, schedule.Options{
		Calendar: academic.Calendar{
			SpringStartMonth: time.Month(conf.Academic.SpringStartMonth),
			AutumnStartMonth: time.Month(conf.Academic.AutumnStartMonth),
			FirstWeekOdd:     *conf.Schedule.FirstWeekOdd,
		},
		ParityFilter: conf.Schedule.ParityFilter,
		Location:     loc,
	})

	ranges := make([]schedule.Range, 0, len(conf.Schedule.Ranges))
	for _, r := range conf.Schedule.Ranges {
		ranges = append(ranges, schedule.Range{ID: r.Range, Course: model.Course(r.Course)})
	}
	refresher := &schedule.Refresher{
		Engine:            engine,
		Reader:            reader,
		Catalog:           source,
		Ranges:            ranges,
		HolidayRange:      conf.Schedule.HolidayRange,
		HeaderRows:        conf.Schedule.HeaderRows,
		HolidayHeaderRows: conf.Schedule.HolidayHeaderRows,
	}
	job := refresh.NewJob(refresher, conf.RefreshTimeout)

	if flags.once {
		snap, err := job.Run(ctx, "once")
		if err != nil {
			return err
		}
		if flags.dump {
			return dumpSnapshot(snap)
		}
		return nil
	}

	// A failed first refresh is not fatal: the API answers 503 until a
	// later run succeeds.
	if snap, err := job.Run(ctx, "startup"); err == nil && flags.dump {
		if err := dumpSnapshot(snap); err != nil {
			appLog.Error("failed to dump snapshot", err)
		}
	}

	if err := job.Start(ctx, conf.RefreshCron, loc); err != nil {
		return err
	}
	defer job.Stop()

	if conf.Sheet.Format == config.SheetFile {
		go func() {
			err := refresh.Watch(ctx, conf.Sheet.Dir, refresh.DefaultDebounce, func() {
				_, _ = job.Run(ctx, "watch")
			})
			if err != nil {
				appLog.Error("sheet watcher stopped", err, "dir", conf.Sheet.Dir)
			}
		}()
	}

	return serve(ctx, conf, web.NewServer(conf, engine, job))
}

func newReader(conf *config.Config) sheet.Reader {
	if conf.Sheet.Format == config.SheetFile {
		return sheet.FileReader{Dir: conf.Sheet.Dir}
	}
	return sheet.NewHTTPReader(sheet.HTTPOptions{
		SpreadsheetID: conf.Sheet.SpreadsheetID,
		BaseURL:       conf.Sheet.BaseURL,
		Format:        sheet.Format(conf.Sheet.Format),
		CacheDir:      conf.Sheet.CacheDir,
		Timeout:       conf.Sheet.Timeout,
		RatePerSec:    conf.Sheet.RatePerSec,
	})
}

func newCatalog(ctx context.Context, conf *config.Config, reader sheet.Reader) (catalog.Source, func() error, error) {
	if conf.Catalog.Driver != config.CatalogSQLite {
		subjects := make(catalog.Static, 0, len(conf.Catalog.Subjects))
		for _, s := range conf.Catalog.Subjects {
			subjects = append(subjects, model.Subject{
				Course:   model.Course(s.Course),
				Semester: model.Semester(s.Semester),
				Name:     s.Name,
			})
		}
		return subjects, func() error { return nil }, nil
	}

	store, err := catalog.OpenSQLite(ctx, conf.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	return &catalog.SheetSource{
		Reader:     reader,
		Range:      conf.Catalog.Range,
		HeaderRows: conf.Catalog.HeaderRows,
		Store:      store,
	}, store.Close, nil
}

func serve(ctx context.Context, conf *config.Config, s *web.Server) error {
	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// dumpSnapshot prints the snapshot as JSON on stdout.
func dumpSnapshot(snap *schedule.Snapshot) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ID              string               `json:"id"`
		BuiltAt         time.Time            `json:"built_at"`
		Ready           bool                 `json:"ready"`
		NotReady        []string             `json:"not_ready,omitempty"`
		Items           []model.ScheduleItem `json:"items"`
		Holidays        []model.DayAndMonth  `json:"holidays"`
		MissingSubjects []string             `json:"missing_subjects"`
		RowErrors       []string             `json:"row_errors"`
	}{
		ID:              snap.ID.String(),
		BuiltAt:         snap.BuiltAt,
		Ready:           snap.Ready,
		NotReady:        snap.NotReady,
		Items:           snap.Items,
		Holidays:        snap.Holidays,
		MissingSubjects: snap.MissingSubjects(),
		RowErrors:       rowErrorStrings(snap),
	})
}

func rowErrorStrings(snap *schedule.Snapshot) []string {
	out := make([]string, 0, len(snap.RowErrors))
	for _, e := range snap.RowErrors {
		out = append(out, e.Error())
	}
	return out
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/schedbot/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Print the refreshed snapshot as JSON on stdout")

	flag.Parse()

	return cfg
}
