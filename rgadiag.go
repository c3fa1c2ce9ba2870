// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/524D/rgadiag/internal/config"
	"github.com/524D/rgadiag/internal/logging"
	"github.com/524D/rgadiag/internal/metrics"
	"github.com/524D/rgadiag/internal/semtracker"
	"github.com/524D/rgadiag/internal/semtracker/badgerstore"
	"github.com/524D/rgadiag/internal/semtracker/redisstore"
)

// Program name and version, reported by the version command
const progName = "rgadiag"

var progVersion = `Unknown`

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// app holds the state shared by all commands of one invocation
type app struct {
	cfgFile string
	verbose bool
	quiet   bool

	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   progName,
		Short: "Calibrate and diagnose residual gas analyzer spectra",
		Long: `rgadiag converts RGA ion currents into partial pressures and reports
leaks, contamination, data quality and detector aging.

Settings are read from the file given with --config and from RGADIAG_*
environment variables, which take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Print more verbose progress information")
	root.PersistentFlags().BoolVar(&a.quiet, "quiet", false, "Don't print any output except for warnings and errors")

	root.AddCommand(
		newAnalyzeCmd(a),
		newCompareCmd(a),
		newSEMCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if a.verbose || a.quiet {
		level = logging.FromVerbosity(a.verbose, a.quiet)
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Log.JSON,
		Writer:  stderr,
		Service: progName,
	})
	a.metrics = metrics.New()
	return nil
}

// openTracker opens the configured SEM history. The returned close
// function releases the backend.
func (a *app) openTracker(ctx context.Context) (*semtracker.Tracker, func() error, error) {
	var (
		store   semtracker.Store
		closeFn = func() error { return nil }
	)
	switch a.cfg.SEM.Store {
	case config.StoreBadger:
		s, err := badgerstore.Open(a.cfg.SEM.BadgerPath, a.logger)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case config.StoreRedis:
		s, err := redisstore.Dial(ctx, a.cfg.SEM.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	default:
		store = semtracker.NewMemoryStore()
	}
	t, err := semtracker.New(ctx, store,
		semtracker.WithKey(a.cfg.SEM.Key),
		semtracker.WithCapacity(a.cfg.SEM.Capacity),
		semtracker.WithLogger(a.logger),
	)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	a.logger.Debug("SEM history opened", "store", a.cfg.SEM.Store, "entries", len(t.Entries()))
	return t, closeFn, nil
}

// flushMetrics writes the metrics textfile when one is configured
func (a *app) flushMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.Warn("cannot write metrics", "file", a.cfg.MetricsFile, "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show software version",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			v := progVersion
			if v == `Unknown` {
				v = `Unknown
Please build this program with -ldflags "-X main.progVersion=..." so that the version is shown here.`
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", progName, v)
		},
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		var uerr usageError
		if errors.As(err, &uerr) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailed)
	}
	os.Exit(exitOK)
}

// usageError marks errors caused by invalid command line arguments
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }
