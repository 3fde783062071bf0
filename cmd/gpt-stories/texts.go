package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

type ExportTextsConfig struct {
	Countries []string
	DataDir   string
	InPath    string
	N         int
	OutDir    string
}

func defaultExportTextsConfig() ExportTextsConfig {
	return ExportTextsConfig{DataDir: "data", N: 50, OutDir: "story_texts"}
}

func (c ExportTextsConfig) Validate() error {
	if c.InPath == "" && len(c.Countries) == 0 {
		return errors.New("missing --country or --in")
	}
	if c.InPath != "" && len(c.Countries) > 0 {
		return errors.New("--country and --in are mutually exclusive")
	}
	if c.N < 1 {
		return errors.New("-n must be >= 1")
	}
	if c.OutDir == "" {
		return errors.New("missing --out-dir")
	}
	return nil
}

// inputs maps each source label to its dataset path.
func (c ExportTextsConfig) inputs() [][2]string {
	if c.InPath != "" {
		return [][2]string{{c.InPath, c.InPath}}
	}
	out := make([][2]string, 0, len(c.Countries))
	for _, cc := range c.Countries {
		out = append(out, [2]string{cc, stories.CountryDatasetPath(c.DataDir, cc)})
	}
	return out
}

func newExportTextsCmd(a *app) *cobra.Command {
	cfg := defaultExportTextsConfig()
	var countries string
	cmd := &cobra.Command{
		Use:   "export-texts",
		Short: "Write the first n stories of a dataset as one .txt file per story",
		Example: `  gpt-stories export-texts --country AU -n 50
  gpt-stories export-texts --country AU,NO,JP -n 20 --out-dir texts`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Countries = stories.SplitTopics(countries)
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}

			var (
				total int
				errs  []error
			)
			for _, in := range cfg.inputs() {
				written, err := stories.ExportTexts(in[1], cfg.OutDir, cfg.N)
				if err != nil {
					a.logger.Error("export failed", zap.String("source", in[0]), zap.Error(err))
					errs = append(errs, err)
					continue
				}
				total += len(written)
				a.logger.Info("stories exported", zap.String("source", in[0]), zap.Int("files", len(written)), zap.String("out_dir", cfg.OutDir))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "files_written=%d sources=%d failed=%d out_dir=%s\n",
				total, len(cfg.inputs()), len(errs), cfg.OutDir)
			return errors.Join(errs...)
		},
	}
	f := cmd.Flags()
	f.StringVar(&countries, "country", "", "comma-separated country codes read from <data-dir>/<CC>/<CC>_stories.csv")
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the per-country datasets")
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "dataset CSV to read instead of --country")
	f.IntVarP(&cfg.N, "count", "n", cfg.N, "number of stories to export per dataset")
	f.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "directory for the .txt files")
	return cmd
}
