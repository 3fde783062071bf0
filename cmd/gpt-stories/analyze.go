package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

type AnalyzeConfig struct {
	InPath      string
	OutPath     string
	Concurrency int
	Overwrite   bool
}

func defaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{Concurrency: 1}
}

func (c AnalyzeConfig) Validate() error {
	if c.InPath == "" {
		return errors.New("missing --in")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	return nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	cfg := defaultAnalyzeConfig()
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize every story of a dataset, or of every dataset in a directory",
		Long: `Adds a "summary" column to each input table. A file input is written to --out
(default summary_<name> next to it); a directory input writes summary_<name> files into --out
(default the input directory) and skips inputs that were already summarized.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			st, err := os.Stat(cfg.InPath)
			if err != nil {
				return usage(fmt.Errorf("%w: %s", stories.ErrInputNotFound, cfg.InPath))
			}
			completer, _, err := a.clients(cmd.Context())
			if err != nil {
				return err
			}

			opts := stories.DefaultAnalyzeOptions()
			if a.cfg.SummaryPrompt != "" {
				opts.Prompt = a.cfg.SummaryPrompt
			}
			opts.Temperature = a.cfg.Temperature
			opts.Concurrency = cfg.Concurrency
			opts.Overwrite = cfg.Overwrite
			opts.Logger = a.logger
			an := stories.Analyzer{Completer: completer, Options: opts}

			start := time.Now()
			if st.IsDir() {
				written, err := an.AnalyzeDir(cmd.Context(), cfg.InPath, cfg.OutPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "files_written=%d in=%s elapsed=%s\n",
					len(written), cfg.InPath, time.Since(start).Round(time.Millisecond))
				return nil
			}

			rows, err := an.AnalyzeFile(cmd.Context(), cfg.InPath, cfg.OutPath)
			if errors.Is(err, fs.ErrExist) {
				return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rows_summarized=%d in=%s elapsed=%s\n",
				rows, cfg.InPath, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "input CSV file or directory of CSV files")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output file (file input) or directory (directory input)")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel model requests")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace existing outputs")
	return cmd
}
