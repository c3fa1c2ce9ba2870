package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/524D/rgadiag/internal/analysis"
	"github.com/524D/rgadiag/internal/calibration"
	"github.com/524D/rgadiag/internal/mzml"
	"github.com/524D/rgadiag/internal/pressure"
	"github.com/524D/rgadiag/internal/spectrum"
	"github.com/524D/rgadiag/internal/stats"
)

// ----- analyze -----

type analyzeFlags struct {
	level         string
	unit          string
	minConfidence float64
	quick         bool
	output        string
	device        string
	workers       int
	scan          string
}

// analyzeResult is one entry of a multi file report
type analyzeResult struct {
	Identifier string           `json:"identifier"`
	Error      string           `json:"error,omitempty"`
	Report     *analysis.Report `json:"report,omitempty"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [flags] file...",
		Short: "Calibrate and diagnose RGA spectra",
		Long: `Analyze reads spectra as CSV (mass,current) or mzML and writes a JSON
report. Metadata such as total pressure, SEM voltage and temperature are
taken from the file name, e.g. leaktest_1e-6mbar_1200V_25C.csv.
With more than one file the spectra are analyzed in parallel and an array
of reports is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyze(cmd, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.level, "level", "", "Calibration level: basic, standard, advanced or precision (default from config)")
	fl.StringVar(&f.unit, "unit", "", "Pressure unit: mbar, Pa or Torr (default from config)")
	fl.Float64Var(&f.minConfidence, "min-confidence", 0, "Minimal diagnosis confidence, 0..1 (default from config)")
	fl.BoolVar(&f.quick, "quick", false, "Only run the leak and oil contamination detectors")
	fl.StringVarP(&f.output, "output", "o", "", "Write the report to this file instead of stdout")
	fl.StringVar(&f.device, "device", "", "JSON file with the device calibration")
	fl.IntVar(&f.workers, "workers", 0, "Number of parallel analyses (default from config)")
	fl.StringVar(&f.scan, "scan", "", "Analyze only this mzML scan id instead of the mean of all scans")
	return cmd
}

func (a *app) analyze(cmd *cobra.Command, f analyzeFlags, files []string) error {
	defer a.flushMetrics()
	ctx := cmd.Context()

	if f.level == "" {
		f.level = a.cfg.Level
	}
	level, err := calibration.ParseLevel(f.level)
	if err != nil {
		return usageError{err}
	}
	if f.unit == "" {
		f.unit = a.cfg.Unit
	}
	unit, err := pressure.ParseUnit(f.unit)
	if err != nil {
		return usageError{err}
	}
	minConf := a.cfg.MinConfidence
	if cmd.Flags().Changed("min-confidence") {
		if f.minConfidence < 0 || f.minConfidence > 1 {
			return usageError{fmt.Errorf("min-confidence %v outside 0..1", f.minConfidence)}
		}
		minConf = f.minConfidence
	}
	if f.scan != "" {
		for _, file := range files {
			if !isMzML(file) {
				return usageError{fmt.Errorf("--scan needs mzML input, got %s", file)}
			}
		}
	}
	workers := a.cfg.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	var device *calibration.DeviceCalibration
	if f.device != "" {
		if device, err = readDevice(f.device); err != nil {
			return err
		}
	}

	tracker, closeTracker, err := a.openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTracker(); err != nil {
			a.logger.Warn("closing SEM history failed", "error", err)
		}
	}()

	analyzer := analysis.New(
		analysis.WithTracker(tracker),
		analysis.WithLimits(a.cfg.Limits...),
		analysis.WithMetrics(a.metrics),
		analysis.WithLogger(a.logger),
	)

	results := make([]analyzeResult, len(files))
	var reqs []analysis.Request
	var slots []int
	for i, file := range files {
		results[i].Identifier = filepath.Base(file)
		spec, err := readSpectrum(file, f.scan)
		if err != nil {
			results[i].Error = err.Error()
			a.logger.Error("cannot read spectrum", "file", file, "error", err)
			continue
		}
		reqs = append(reqs, analysis.Request{
			Identifier:    results[i].Identifier,
			Spectrum:      spec,
			Level:         level,
			Device:        device,
			Unit:          unit,
			MinConfidence: minConf,
			Quick:         f.quick,
		})
		slots = append(slots, i)
	}

	items, err := analyzer.RunBatch(ctx, reqs, workers)
	if err != nil {
		return err
	}
	failed := 0
	for j, item := range items {
		r := &results[slots[j]]
		r.Report = item.Report
		if item.Err != nil {
			r.Error = item.Err.Error()
		}
	}
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	if f.output != "" {
		fo, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer fo.Close()
		out = fo
	}
	if len(files) == 1 {
		if results[0].Error != "" {
			return errors.New(results[0].Error)
		}
		if err := writeJSON(out, results[0].Report); err != nil {
			return err
		}
	} else if err := writeJSON(out, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(files))
	}
	return nil
}

func isMzML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mzml")
}

// readSpectrum reads CSV, or mzML when the extension says so. All scans
// of an mzML file are averaged unless scan names one of them.
func readSpectrum(path, scan string) (spectrum.Spectrum, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fi.Close()

	if isMzML(path) {
		f, err := mzml.Read(fi)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if scan == "" {
			return f.MeanSpectrum()
		}
		idx, err := f.ScanIndex(scan)
		if err != nil {
			return nil, fmt.Errorf("%s: scan %q: %w", path, scan, err)
		}
		return f.Spectrum(idx)
	}
	s, err := spectrum.ReadCSV(fi)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func readDevice(path string) (*calibration.DeviceCalibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dev calibration.DeviceCalibration
	if err := json.Unmarshal(data, &dev); err != nil {
		return nil, fmt.Errorf("device calibration %s: %w", path, err)
	}
	return &dev, nil
}

// ----- compare -----

func newCompareCmd(a *app) *cobra.Command {
	var (
		value, uncertainty, limit float64
		asJSON                    bool
	)
	cmd := &cobra.Command{
		Use:   "compare --value v --uncertainty u --limit l",
		Short: "Compare a measured value with a limit, taking its uncertainty into account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := stats.CompareToLimit(value, uncertainty, limit)
			if err != nil {
				return usageError{err}
			}
			a.logger.Debug("limit compared", "margin", c.Margin, "conclusion", c.Conclusion)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			return printComparison(cmd.OutOrStdout(), c)
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&value, "value", 0, "Measured value")
	fl.Float64Var(&uncertainty, "uncertainty", 0, "Standard uncertainty of the value, same unit")
	fl.Float64Var(&limit, "limit", 0, "Limit, same unit")
	fl.BoolVar(&asJSON, "json", false, "Write JSON instead of text")
	for _, name := range []string{"value", "uncertainty", "limit"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printComparison(w io.Writer, c stats.LimitComparison) error {
	_, err := fmt.Fprintf(w, "Conclusion:     %s\nMargin:         %.2f sigma\nP(compliant):   %.2f%%\n%s\n%s\n",
		c.Conclusion, c.Margin, c.Probability*100, c.Message, c.Recommendation)
	return err
}

// ----- sem -----

func newSEMCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sem",
		Short: "Inspect the SEM voltage history",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Check the SEM voltage history for detector aging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, closeTracker, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeTracker()
			w := t.CheckAging()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", w.Severity, w.Message)
			if w.Recommendation != "" {
				fmt.Fprintln(out, w.Recommendation)
			}
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the recorded SEM voltages, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, closeTracker, err := a.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeTracker()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIMESTAMP\tVOLTAGE\tSOURCE")
			for _, e := range t.Entries() {
				fmt.Fprintf(tw, "%s\t%.0f\t%s\n", e.Timestamp.Format(time.RFC3339), e.Voltage, e.Source)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(check, list)
	return cmd
}
