package stories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

const (
	StoryColumn       = "Story"
	StoryIDColumn     = "Story ID"
	SummaryColumn     = "summary"
	SummaryFilePrefix = "summary_"

	DefaultSummaryPrompt    = "Create a 50 word plot summary of this story:\n\n{{.Story}}"
	DefaultSummaryMaxTokens = 100
)

type AnalyzeOptions struct {
	// Prompt is a text/template over {{.Story}}; empty means DefaultSummaryPrompt.
	Prompt      string
	Temperature float64
	MaxTokens   int
	Concurrency int
	Overwrite   bool
	Logger      *zap.Logger
}

func DefaultAnalyzeOptions() AnalyzeOptions {
	return AnalyzeOptions{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultSummaryMaxTokens,
		Concurrency: 1,
	}
}

// Analyzer summarizes every story of a table and appends the summaries as a new column.
type Analyzer struct {
	Completer Completer
	Options   AnalyzeOptions
}

// SummaryOutputName is the file name the analysis of inPath is written under.
func SummaryOutputName(inPath string) string {
	return SummaryFilePrefix + filepath.Base(filepath.Clean(inPath))
}

// AnalyzeFile reads inPath, summarizes each row and writes the result to outPath
// (default: summary_<basename> next to the input). It returns the number of rows summarized.
func (a Analyzer) AnalyzeFile(ctx context.Context, inPath, outPath string) (int, error) {
	if a.Completer == nil {
		return 0, errors.New("AnalyzeFile: completer is nil")
	}
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(inPath), SummaryOutputName(inPath))
	}
	if err := fileutils.CheckWritable(outPath, a.Options.Overwrite); err != nil {
		return 0, err
	}

	t, err := ReadTable(inPath)
	if err != nil {
		return 0, err
	}
	storyCol, err := t.Require(StoryColumn)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", inPath, err)
	}
	tmpl, err := parseRowTemplate("summary", a.Options.Prompt, DefaultSummaryPrompt)
	if err != nil {
		return 0, err
	}

	log := loggerOrNop(a.Options.Logger)
	total := len(t.Rows)
	summaries, err := mapRows(ctx, total, a.Options.Concurrency, func(ctx context.Context, i int) (string, error) {
		prompt, err := renderRow(tmpl, t.Rows[i][storyCol])
		if err != nil {
			return "", err
		}
		log.Info("analysing story", zap.Int("n", i+1), zap.Int("of", total), zap.String("file", filepath.Base(inPath)))
		text, err := a.Completer.Complete(ctx, CompletionRequest{
			Messages:    []Message{{Role: RoleUser, Content: prompt}},
			Temperature: a.Options.Temperature,
			MaxTokens:   a.Options.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("summarize row %d of %s: %w", i+1, inPath, err)
		}
		return text, nil
	})
	if err != nil {
		return 0, err
	}

	if err := t.AppendColumn(SummaryColumn, summaries); err != nil {
		return 0, err
	}
	if err := WriteTable(outPath, t); err != nil {
		return 0, fmt.Errorf("write %s: %w", outPath, err)
	}
	log.Info("analysis complete", zap.String("out", outPath), zap.Int("rows", total))
	return total, nil
}

// AnalyzeDir runs AnalyzeFile on every *.csv in inDir (sorted, previous summary_ outputs excluded),
// writing into outDir. Inputs whose output already exists are skipped unless Overwrite is set.
// It returns the output paths written.
func (a Analyzer) AnalyzeDir(ctx context.Context, inDir, outDir string) ([]string, error) {
	inputs, err := listCSV(inDir)
	if err != nil {
		return nil, err
	}
	if outDir == "" {
		outDir = inDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	log := loggerOrNop(a.Options.Logger)
	var written []string
	for _, in := range inputs {
		if strings.HasPrefix(filepath.Base(in), SummaryFilePrefix) {
			continue
		}
		out := filepath.Join(outDir, SummaryOutputName(in))
		if !a.Options.Overwrite && fileutils.FileExists(out) {
			log.Info("skipping, output exists", zap.String("out", out))
			continue
		}
		if _, err := a.AnalyzeFile(ctx, in, out); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

func listCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrInputNotFound)
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
