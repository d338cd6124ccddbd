package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/internal/transcript"
)

type noteOptions struct {
	metrics bool
	json    bool
	jobs    int
}

func newNoteCmd(root *rootOptions) *cobra.Command {
	opts := &noteOptions{}
	cmd := &cobra.Command{
		Use:   "note FILE...",
		Short: "Generate notes from transcript files",
		Long: `Generate a structured note for each transcript file.

Each file is one encounter; each non-empty line is one transcript increment
and may start with a speaker marker such as "Doctor:" or "Patient:". Use "-"
to read standard input. Files are processed concurrently and printed in the
order given.

Examples:
  medscribe note visit.txt
  medscribe note --metrics visit-1.txt visit-2.txt
  cat visit.txt | medscribe note --json -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			logger, _, closer := newLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
			defer closer.Close()
			slog.SetDefault(logger)

			pipe, _, err := buildPipeline(cfg, observe.DefaultMetrics())
			if err != nil {
				return err
			}
			reports, err := runNotes(cmd.Context(), pipe, cmd.InOrStdin(), args, opts.jobs)
			if err != nil {
				return err
			}
			return printReports(cmd.OutOrStdout(), args, reports, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print a quality summary after each note")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print reports as JSON lines")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of files processed concurrently")
	return cmd
}

// runNotes processes each file as its own encounter and returns the reports
// in input order. stdin is read for the path "-".
func runNotes(ctx context.Context, pipe *encounter.Pipeline, stdin io.Reader, paths []string, jobs int) ([]encounter.Report, error) {
	if jobs < 1 {
		jobs = 1
	}
	reports := make([]encounter.Report, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			var r io.Reader
			if path == "-" {
				r = stdin
			} else {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("note: %w", err)
				}
				defer f.Close()
				r = f
			}
			rep, err := processTranscript(gctx, pipe, path, r)
			if err != nil {
				return fmt.Errorf("note %s: %w", path, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// processTranscript feeds r line by line into a fresh encounter.
func processTranscript(ctx context.Context, pipe *encounter.Pipeline, id string, r io.Reader) (encounter.Report, error) {
	// Offline transcripts carry no recorded start time.
	e := encounter.New(id, pipe, time.Time{})
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := e.Process(ctx, transcript.Increment{Text: line}); err != nil {
			return encounter.Report{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return encounter.Report{}, fmt.Errorf("read transcript: %w", err)
	}
	return e.Report(ctx)
}

// printReports writes the notes in input order.
func printReports(w io.Writer, paths []string, reports []encounter.Report, opts *noteOptions) error {
	if opts.json {
		enc := json.NewEncoder(w)
		for _, rep := range reports {
			if err := enc.Encode(rep); err != nil {
				return err
			}
		}
		return nil
	}

	bold := color.New(color.Bold)
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(paths) > 1 {
			bold.Fprintf(w, "==> %s <==\n", paths[i])
		}
		fmt.Fprintln(w, rep.Note)
		if opts.metrics {
			printMetrics(w, rep.Metrics)
		}
	}
	return nil
}

// printMetrics writes a coloured one-glance quality summary.
func printMetrics(w io.Writer, m quality.Metrics) {
	pct := color.New(completenessColor(m.Completeness)).SprintfFunc()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", color.New(color.Faint).Sprint("completeness"), pct("%3.0f%%", m.Completeness*100))
	fmt.Fprintf(w, "%s   %.2f\n", color.New(color.Faint).Sprint("confidence"), m.Confidence)
	fmt.Fprintf(w, "%s  %s\n", color.New(color.Faint).Sprint("specificity"), color.New(specificityColor(m.Specificity)).Sprint(m.Specificity))
	if len(m.Missing) > 0 {
		missing := make([]string, len(m.Missing))
		for i, f := range m.Missing {
			missing[i] = string(f)
		}
		fmt.Fprintf(w, "%s      %s\n", color.New(color.Faint).Sprint("missing"), color.YellowString(strings.Join(missing, ", ")))
	}
}

func completenessColor(c float64) color.Attribute {
	switch {
	case c >= 0.8:
		return color.FgGreen
	case c >= 0.5:
		return color.FgYellow
	}
	return color.FgRed
}

func specificityColor(s quality.Specificity) color.Attribute {
	switch s {
	case quality.SpecificityHigh:
		return color.FgGreen
	case quality.SpecificityMedium:
		return color.FgYellow
	}
	return color.FgRed
}
