package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/chart"
	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

const defaultFrequencyPath = "word_frequency.csv"

type WordFrequencyConfig struct {
	DataDir   string
	Countries []string
	OutPath   string
	MinLength int
	Overwrite bool
}

func defaultWordFrequencyConfig() WordFrequencyConfig {
	return WordFrequencyConfig{
		DataDir:   "data",
		OutPath:   defaultFrequencyPath,
		MinLength: stories.DefaultWordFrequencyOptions().MinLength,
	}
}

func (c WordFrequencyConfig) Validate() error {
	if c.DataDir == "" {
		return errors.New("missing --data-dir")
	}
	if c.OutPath == "" {
		return errors.New("missing --out")
	}
	if c.MinLength < 1 {
		return errors.New("min-length must be >= 1")
	}
	for _, cc := range c.Countries {
		if !stories.IsCountryCode(cc) {
			return fmt.Errorf("invalid country code %q (want two uppercase letters)", cc)
		}
	}
	return nil
}

// discoverCountries lists the country directories under dataDir that hold a story dataset.
func discoverCountries(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", stories.ErrInputNotFound, dataDir)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || !stories.IsCountryCode(e.Name()) {
			continue
		}
		if fileutils.FileExists(stories.CountryDatasetPath(dataDir, e.Name())) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func newWordFrequencyCmd(a *app) *cobra.Command {
	cfg := defaultWordFrequencyConfig()
	var countries string
	cmd := &cobra.Command{
		Use:   "word-frequency",
		Short: "Count word use per country across the per-country story datasets",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Countries = stories.SplitTopics(strings.ToUpper(countries))
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			if err := fileutils.CheckWritable(cfg.OutPath, cfg.Overwrite); err != nil {
				return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
			}
			if len(cfg.Countries) == 0 {
				found, err := discoverCountries(cfg.DataDir)
				if err != nil {
					return usage(err)
				}
				if len(found) == 0 {
					return usage(fmt.Errorf("no <CC>/<CC>_stories.csv datasets under %s", cfg.DataDir))
				}
				cfg.Countries = found
			}

			datasets := make([]stories.CountryDataset, 0, len(cfg.Countries))
			for _, cc := range cfg.Countries {
				datasets = append(datasets, stories.CountryDataset{Country: cc, Path: stories.CountryDatasetPath(cfg.DataDir, cc)})
			}
			opts := stories.DefaultWordFrequencyOptions()
			opts.MinLength = cfg.MinLength
			ft, err := stories.BuildFrequencyTable(datasets, opts)
			if err != nil {
				return err
			}
			if err := stories.WriteFrequencyTable(cfg.OutPath, ft); err != nil {
				return err
			}
			a.logger.Info("frequency table written",
				zap.String("out", cfg.OutPath),
				zap.String("words", humanize.Comma(int64(len(ft.Rows)))),
				zap.Strings("countries", ft.Countries),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "words=%d countries=%d out=%s\n", len(ft.Rows), len(ft.Countries), cfg.OutPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding <CC>/<CC>_stories.csv datasets")
	f.StringVar(&countries, "countries", "", "comma-separated country codes (default: every dataset under --data-dir)")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output frequency CSV")
	f.IntVar(&cfg.MinLength, "min-length", cfg.MinLength, "ignore words shorter than this many letters")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	return cmd
}

type CompareWordsConfig struct {
	InPath    string
	List      string
	Words     []string
	Top       int
	OutPath   string
	Overwrite bool
}

func defaultCompareWordsConfig() CompareWordsConfig {
	return CompareWordsConfig{InPath: defaultFrequencyPath, List: "conflict", Top: stories.DefaultCompareTop}
}

func (c CompareWordsConfig) Validate() error {
	if c.InPath == "" {
		return errors.New("missing --in")
	}
	if c.Top < 1 {
		return errors.New("top must be >= 1")
	}
	if len(c.Words) == 0 {
		if _, err := stories.WordList(c.List); err != nil {
			return err
		}
	}
	return nil
}

func (c CompareWordsConfig) words() []string {
	if len(c.Words) > 0 {
		return c.Words
	}
	w, _ := stories.WordList(c.List)
	return w
}

func newCompareWordsCmd(a *app) *cobra.Command {
	cfg := defaultCompareWordsConfig()
	var words string
	cmd := &cobra.Command{
		Use:   "compare-words",
		Short: "Rank the countries that use each word of a word list most",
		Example: `  gpt-stories compare-words --list supernatural
  gpt-stories compare-words --words troll,fjord --top 5 --out troll_fjord.csv`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Words = stories.SplitTopics(strings.ToLower(words))
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			if cfg.OutPath != "" {
				if err := fileutils.CheckWritable(cfg.OutPath, cfg.Overwrite); err != nil {
					return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
				}
			}
			ft, err := stories.LoadFrequencyTable(cfg.InPath)
			if err != nil {
				return err
			}
			list := cfg.words()
			rankings := stories.CompareWords(ft, list, cfg.Top)
			for _, r := range rankings {
				top := make([]string, len(r.Top))
				for i, c := range r.Top {
					top[i] = fmt.Sprintf("%s:%s", c.Country, humanize.Ftoa(c.Count))
				}
				a.logger.Info("word ranking", zap.String("word", r.Word), zap.Strings("top", top))
			}
			if len(rankings) < len(list) {
				a.logger.Warn("words missing from frequency table", zap.Int("missing", len(list)-len(rankings)))
			}
			if cfg.OutPath != "" {
				if err := stories.WriteRankings(cfg.OutPath, rankings); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "words_ranked=%d words_requested=%d out=%s\n", len(rankings), len(list), cfg.OutPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "word frequency CSV")
	f.StringVar(&cfg.List, "list", cfg.List, "built-in word list: conflict or supernatural")
	f.StringVar(&words, "words", "", "comma-separated words to compare instead of --list")
	f.IntVar(&cfg.Top, "top", cfg.Top, "countries to rank per word")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "write the rankings to this CSV")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	return cmd
}

type BoxplotConfig struct {
	InPath    string
	N         int
	Words     []string
	OutPath   string
	Overwrite bool
}

func defaultBoxplotConfig() BoxplotConfig {
	return BoxplotConfig{InPath: defaultFrequencyPath, N: 20, OutPath: "top_words_boxplot.png"}
}

func (c BoxplotConfig) Validate() error {
	if c.InPath == "" {
		return errors.New("missing --in")
	}
	if c.OutPath == "" {
		return errors.New("missing --out")
	}
	if len(c.Words) == 0 && c.N < 1 {
		return errors.New("-n must be >= 1")
	}
	return nil
}

func newBoxplotCmd(a *app) *cobra.Command {
	cfg := defaultBoxplotConfig()
	var words string
	cmd := &cobra.Command{
		Use:   "boxplot",
		Short: "Plot the per-country frequency distribution of the most used words",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Words = stories.SplitTopics(strings.ToLower(words))
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			if err := fileutils.CheckWritable(cfg.OutPath, cfg.Overwrite); err != nil {
				return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
			}
			ft, err := stories.LoadFrequencyTable(cfg.InPath)
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, stories.ErrInputNotFound) {
				return usage(err)
			}
			if err != nil {
				return err
			}

			rows := ft.TopK(cfg.N)
			n := cfg.N
			if len(cfg.Words) > 0 {
				rows = ft.Select(cfg.Words)
				n = len(rows)
			}
			stats, err := stories.WordStats(ft.Melt(rows))
			if err != nil {
				return err
			}
			for _, s := range stats {
				outliers := make([]string, len(s.HighOutliers))
				for i, o := range s.HighOutliers {
					outliers[i] = o.Country
				}
				a.logger.Info("word distribution",
					zap.String("word", s.Word),
					zap.String("max_country", s.MaxCountry),
					zap.Float64("max", s.Max),
					zap.Float64("mean", s.Mean),
					zap.Float64("q90", s.Q90),
					zap.Strings("high_outliers", outliers),
				)
			}
			if err := chart.SaveBoxplot(cfg.OutPath, stats, chart.DefaultBoxplotOptions(n)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "words=%d countries=%d out=%s\n", len(stats), len(ft.Countries), cfg.OutPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "word frequency CSV")
	f.IntVarP(&cfg.N, "top", "n", cfg.N, "plot the n words with the highest global frequency")
	f.StringVar(&words, "words", "", "comma-separated words to plot instead of the top n")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output image (.png, .svg or .pdf)")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	return cmd
}
