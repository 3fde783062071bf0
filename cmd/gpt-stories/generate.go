package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
	"github.com/theimaginaryfoundation/gpt-stories/stories/journal"
)

type GenerateConfig struct {
	Topics    []string
	PerTopic  int
	OutPath   string
	Overwrite bool
	Journal   string
	Resume    bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Journal: "gpt-stories.db",
		Resume:  true,
	}
}

func (c GenerateConfig) Validate() error {
	if len(c.Topics) == 0 {
		return stories.ErrNoTopics
	}
	if err := stories.ValidateTopics(c.Topics); err != nil {
		return err
	}
	if c.PerTopic < 1 {
		return errors.New("num_story_per_topic must be >= 1")
	}
	if c.OutPath == "" {
		return errors.New("missing --out")
	}
	return nil
}

// parseGenerateArgs fills the positional <countries> <num_story_per_topic> arguments.
func parseGenerateArgs(cfg *GenerateConfig, args []string) error {
	cfg.Topics = stories.SplitTopics(args[0])
	n, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return fmt.Errorf("num_story_per_topic: %q is not a number", args[1])
	}
	cfg.PerTopic = n
	return nil
}

func newGenerateCmd(a *app) *cobra.Command {
	cfg := defaultGenerateConfig()
	cmd := &cobra.Command{
		Use:   "generate <countries> <num_story_per_topic>",
		Short: "Generate story summaries for each comma-separated topic",
		Example: `  gpt-stories generate "Norway,Japan" 10 --out data/stories.csv
  gpt-stories generate Australia 5 --out au --overwrite`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := parseGenerateArgs(&cfg, args); err != nil {
				return usage(err)
			}
			if err := cfg.Validate(); err != nil {
				return usage(err)
			}
			cfg.OutPath = fileutils.EnsureCSVExt(cfg.OutPath)
			return runGenerate(cmd.Context(), a, cfg, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.OutPath, "out", "o", cfg.OutPath, "output CSV (.csv is appended if missing)")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing output file")
	f.StringVar(&cfg.Journal, "journal", cfg.Journal, "SQLite journal of generated stories (empty disables)")
	f.BoolVar(&cfg.Resume, "resume", cfg.Resume, "reuse stories journaled by an unfinished run with the same arguments (needs --journal)")
	return cmd
}

func runGenerate(ctx context.Context, a *app, cfg GenerateConfig, stdout io.Writer) error {
	completer, _, err := a.clients(ctx)
	if err != nil {
		return err
	}

	dw, err := stories.CreateDatasetWriter(cfg.OutPath, cfg.Overwrite)
	if errors.Is(err, fs.ErrExist) {
		return usage(fmt.Errorf("%w (pass --overwrite to replace it)", err))
	}
	if err != nil {
		return err
	}
	defer dw.Close()

	sinks := []stories.RecordSink{dw}
	var existing map[string]stories.StoryRecord
	var (
		jr  *journal.Journal
		run journal.Run
	)
	if cfg.Journal != "" {
		jr, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer jr.Close()

		topicsKey := strings.Join(cfg.Topics, ",")
		if cfg.Resume {
			prev, ok, err := jr.OpenRun(ctx, cfg.OutPath, topicsKey, cfg.PerTopic)
			if err != nil {
				return err
			}
			if ok {
				run = prev
				if existing, err = jr.Existing(ctx, run.ID); err != nil {
					return err
				}
				a.logger.Info("resuming run", zap.String("run_id", run.ID), zap.Int("journaled", len(existing)))
			}
		}
		if run.ID == "" {
			run, err = jr.StartRun(ctx, journal.Run{
				OutPath:  cfg.OutPath,
				Topics:   topicsKey,
				PerTopic: cfg.PerTopic,
				Model:    a.cfg.ModelName(),
			})
			if err != nil {
				return err
			}
		}
		sinks = append(sinks, jr.Sink(ctx, run.ID))
	}

	opts := stories.DefaultGenerateOptions()
	opts.Template = a.cfg.PromptTemplate
	opts.System = a.cfg.SystemPrompt
	opts.Temperature = a.cfg.Temperature
	opts.MaxTokens = a.cfg.MaxTokens
	opts.Sink = stories.MultiSink(sinks...)
	opts.Existing = existing
	opts.Logger = a.logger

	start := time.Now()
	records, err := stories.Generator{Completer: completer, Options: opts}.Generate(ctx, cfg.Topics, cfg.PerTopic)
	if err != nil {
		a.logger.Error("generation stopped",
			zap.Int("saved", dw.Count()),
			zap.String("partial", dw.PartialPath()),
			zap.Error(err),
		)
		return err
	}
	if err := dw.Commit(); err != nil {
		return err
	}
	if jr != nil {
		if err := jr.CompleteRun(ctx, run.ID); err != nil {
			return err
		}
	}

	size := ""
	if st, err := os.Stat(cfg.OutPath); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	a.logger.Info("dataset written",
		zap.String("out", cfg.OutPath),
		zap.String("size", size),
		zap.String("stories", humanize.Comma(int64(len(records)))),
	)
	fmt.Fprintf(stdout, "stories=%d reused=%d out=%s run_id=%s elapsed=%s\n",
		len(records), len(existing), cfg.OutPath, run.ID, time.Since(start).Round(time.Millisecond))
	return nil
}
