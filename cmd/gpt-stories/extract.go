package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/provider"
)

// extractKind describes one extraction subcommand.
type extractKind struct {
	use        string
	short      string
	extraction func(schema map[string]any) stories.Extraction
}

var (
	extractNames = extractKind{
		use:        "extract-names",
		short:      "List the character names found in each story",
		extraction: stories.NamesExtraction,
	}
	extractNounPhrases = extractKind{
		use:        "extract-noun-phrases",
		short:      "List the noun phrases found in each story",
		extraction: stories.NounPhrasesExtraction,
	}
)

type ExtractConfig struct {
	InPath      string
	OutPath     string
	TallyPath   string
	MinStories  int
	Concurrency int
	Overwrite   bool
}

func defaultExtractConfig() ExtractConfig {
	return ExtractConfig{MinStories: 1, Concurrency: 1}
}

func (c ExtractConfig) Validate() error {
	if c.InPath == "" {
		return errors.New("missing --in")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	if c.MinStories < 1 {
		return errors.New("min-stories must be >= 1")
	}
	return nil
}

func newExtractCmd(a *app, kind extractKind) *cobra.Command {
	cfg := defaultExtractConfig()
	cmd := &cobra.Command{
		Use:   kind.use,
		Short: kind.short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			_, structured, err := a.clients(cmd.Context())
			if err != nil {
				return err
			}
			x := kind.extraction(provider.GenerateSchema[stories.ExtractedTerms]())
			ex := stories.Extractor{
				Completer: structured,
				Options: stories.ExtractOptions{
					MaxTokens:   a.cfg.MaxTokens,
					Concurrency: cfg.Concurrency,
					Overwrite:   cfg.Overwrite,
					Logger:      a.logger,
				},
			}

			out := cfg.OutPath
			if out == "" {
				out = filepath.Join(filepath.Dir(cfg.InPath), x.OutputName(cfg.InPath))
			}
			start := time.Now()
			tally, err := ex.ExtractFile(cmd.Context(), x, cfg.InPath, out)
			if errors.Is(err, fs.ErrExist) {
				return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
			}
			if err != nil {
				return err
			}

			counts := tally.Counts(cfg.MinStories)
			if cfg.TallyPath != "" {
				if err := stories.WriteTallyTable(cfg.TallyPath, x.Column, counts); err != nil {
					return err
				}
			}
			for i, c := range counts {
				if i == 10 {
					break
				}
				a.logger.Info("frequent "+x.Column,
					zap.String("term", c.Term),
					zap.Int("stories", c.Stories),
					zap.String("first", c.First),
				)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "distinct_terms=%d out=%s tally=%s elapsed=%s\n",
				len(counts), out, cfg.TallyPath, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "input story dataset CSV")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output CSV (default <prefix><name> next to the input)")
	f.StringVar(&cfg.TallyPath, "tally", cfg.TallyPath, "also write per-term story counts to this CSV")
	f.IntVar(&cfg.MinStories, "min-stories", cfg.MinStories, "tally only terms found in at least this many stories")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel model requests")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	return cmd
}

type SentimentConfig struct {
	InPath      string
	OutPath     string
	Concurrency int
	Overwrite   bool
}

func defaultSentimentConfig() SentimentConfig {
	return SentimentConfig{Concurrency: 1}
}

func (c SentimentConfig) Validate() error {
	if c.InPath == "" {
		return errors.New("missing --in")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	return nil
}

func newSentimentCmd(a *app) *cobra.Command {
	cfg := defaultSentimentConfig()
	cmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Score the sentiment of each story",
		Long: `Adds sentiment_label and sentiment_polarity columns to the input table.
Use --provider to compare how different models rate the same stories.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			_, structured, err := a.clients(cmd.Context())
			if err != nil {
				return err
			}
			sc := stories.SentimentScorer{
				Completer: structured,
				Schema:    provider.GenerateSchema[stories.Sentiment](),
				Options: stories.SentimentOptions{
					MaxTokens:   a.cfg.MaxTokens,
					Concurrency: cfg.Concurrency,
					Overwrite:   cfg.Overwrite,
					Logger:      a.logger,
				},
			}

			start := time.Now()
			scores, err := sc.ScoreFile(cmd.Context(), cfg.InPath, cfg.OutPath)
			if errors.Is(err, fs.ErrExist) {
				return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
			}
			if err != nil {
				return err
			}
			labels := map[string]int{}
			for _, s := range scores {
				labels[s.Label]++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stories=%d positive=%d neutral=%d negative=%d provider=%s elapsed=%s\n",
				len(scores), labels[stories.LabelPositive], labels[stories.LabelNeutral], labels[stories.LabelNegative],
				a.cfg.Provider, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.InPath, "in", "i", cfg.InPath, "input story dataset CSV")
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output CSV (default sentiment_<name> next to the input)")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel model requests")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	return cmd
}
