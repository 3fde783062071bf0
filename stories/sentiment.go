package stories

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

const (
	SentimentLabelColumn    = "sentiment_label"
	SentimentPolarityColumn = "sentiment_polarity"
	SentimentFilePrefix     = "sentiment_"

	DefaultSentimentInstructions = "You rate the overall sentiment of a short children's story. " +
		"polarity runs from -1 (very negative) through 0 (neutral) to 1 (very positive). " +
		"label is positive, neutral or negative and must agree with polarity."
)

const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// Sentiment is the structured response for one story.
type Sentiment struct {
	Label    string  `json:"label" jsonschema:"enum=positive,enum=neutral,enum=negative"`
	Polarity float64 `json:"polarity" jsonschema_description:"Sentiment polarity between -1 and 1."`
}

// Normalize clamps polarity to [-1,1] and derives the label from it when the label is not recognized.
func (s Sentiment) Normalize() Sentiment {
	if math.IsNaN(s.Polarity) {
		s.Polarity = 0
	}
	s.Polarity = math.Max(-1, math.Min(1, s.Polarity))
	switch l := strings.ToLower(strings.TrimSpace(s.Label)); l {
	case LabelPositive, LabelNeutral, LabelNegative:
		s.Label = l
	default:
		s.Label = labelFor(s.Polarity)
	}
	return s
}

func labelFor(p float64) string {
	switch {
	case p > 0.05:
		return LabelPositive
	case p < -0.05:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

type SentimentOptions struct {
	Instructions string
	MaxTokens    int
	Concurrency  int
	Overwrite    bool
	Logger       *zap.Logger
}

// SentimentScorer appends sentiment_label and sentiment_polarity columns to a story table.
type SentimentScorer struct {
	Completer StructuredCompleter
	// Schema is the JSON schema for Sentiment.
	Schema  map[string]any
	Options SentimentOptions
}

func SentimentOutputName(inPath string) string {
	return SentimentFilePrefix + filepath.Base(filepath.Clean(inPath))
}

func (s SentimentScorer) ScoreFile(ctx context.Context, inPath, outPath string) ([]Sentiment, error) {
	if s.Completer == nil {
		return nil, errors.New("ScoreFile: completer is nil")
	}
	if s.Schema == nil {
		return nil, errors.New("ScoreFile: schema is nil")
	}
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(inPath), SentimentOutputName(inPath))
	}
	if err := fileutils.CheckWritable(outPath, s.Options.Overwrite); err != nil {
		return nil, err
	}

	t, err := ReadTable(inPath)
	if err != nil {
		return nil, err
	}
	storyCol, err := t.Require(StoryColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}
	instructions := s.Options.Instructions
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultSentimentInstructions
	}

	log := loggerOrNop(s.Options.Logger)
	total := len(t.Rows)
	scores, err := mapRows(ctx, total, s.Options.Concurrency, func(ctx context.Context, i int) (Sentiment, error) {
		var resp Sentiment
		err := s.Completer.CompleteJSON(ctx, StructuredRequest{
			Name:         "story_sentiment",
			Description:  "Sentiment of a story",
			Instructions: instructions,
			Input:        t.Rows[i][storyCol],
			Schema:       s.Schema,
			MaxTokens:    s.Options.MaxTokens,
		}, &resp)
		if err != nil {
			return Sentiment{}, fmt.Errorf("sentiment row %d of %s: %w", i+1, inPath, err)
		}
		resp = resp.Normalize()
		log.Info("scored", zap.Int("n", i+1), zap.Int("of", total), zap.String("label", resp.Label), zap.Float64("polarity", resp.Polarity))
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(scores))
	polarities := make([]string, len(scores))
	for i, sc := range scores {
		labels[i] = sc.Label
		polarities[i] = strconv.FormatFloat(sc.Polarity, 'f', -1, 64)
	}
	if err := t.AppendColumn(SentimentLabelColumn, labels); err != nil {
		return nil, err
	}
	if err := t.AppendColumn(SentimentPolarityColumn, polarities); err != nil {
		return nil, err
	}
	if err := WriteTable(outPath, t); err != nil {
		return nil, fmt.Errorf("write %s: %w", outPath, err)
	}
	return scores, nil
}
