package stories

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

const DefaultTemperature = 0.8

// storyPreviewRunes bounds the story excerpt in per-story info logs; the full text is logged at debug.
const storyPreviewRunes = 60

type GenerateOptions struct {
	// Template overrides DefaultPromptTemplate.
	Template string
	// System is sent as a system message ahead of every prompt when non-empty.
	System      string
	Temperature float64
	MaxTokens   int

	// Sink receives each record as soon as it exists. Optional.
	Sink RecordSink
	// Existing holds records from an interrupted run, keyed by ID. They are reused instead of requested.
	Existing map[string]StoryRecord

	Logger *zap.Logger
}

func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Temperature: DefaultTemperature}
}

// Generator asks the model for perTopic independent stories for each topic.
type Generator struct {
	Completer Completer
	Options   GenerateOptions
}

// Generate returns len(topics)*perTopic records in topic order. Every request carries only its own prompt.
// On failure the records produced so far are returned together with the error.
func (g Generator) Generate(ctx context.Context, topics []string, perTopic int) ([]StoryRecord, error) {
	if g.Completer == nil {
		return nil, errors.New("Generate: completer is nil")
	}
	if perTopic < 1 {
		return nil, fmt.Errorf("Generate: stories per topic must be >= 1, got %d", perTopic)
	}
	prompts, err := PromptBuilder{Template: g.Options.Template}.Build(topics)
	if err != nil {
		return nil, err
	}

	log := loggerOrNop(g.Options.Logger)
	log.Info("generating stories",
		zap.Int("prompts", len(prompts)),
		zap.Int("stories_per_prompt", perTopic),
		zap.Int("reused", len(g.Options.Existing)),
	)

	records := make([]StoryRecord, 0, len(prompts)*perTopic)
	for i, prompt := range prompts {
		topic := topics[i]
		log.Info("prompt", zap.Int("n", i+1), zap.Int("of", len(prompts)), zap.String("prompt", prompt))

		for seq := 1; seq <= perTopic; seq++ {
			id := StoryID(topic, seq)

			rec, ok := g.Options.Existing[id]
			if ok && rec.Prompt == prompt {
				log.Debug("reusing journaled story", zap.String("id", id))
			} else {
				if err := ctx.Err(); err != nil {
					return records, err
				}
				story, err := g.Completer.Complete(ctx, g.request(prompt))
				if err != nil {
					return records, fmt.Errorf("generate %s: %w", id, err)
				}
				rec = StoryRecord{ID: id, Story: story, Prompt: prompt, Topic: topic}
				log.Info("story generated",
					zap.String("id", id),
					zap.Int("version", seq),
					zap.Int("of", perTopic),
					zap.String("preview", fileutils.Truncate(story, storyPreviewRunes)),
				)
				log.Debug("story text", zap.String("id", id), zap.String("story", story))
			}

			if g.Options.Sink != nil {
				if err := g.Options.Sink.Append(rec); err != nil {
					return records, fmt.Errorf("persist %s: %w", id, err)
				}
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// request builds a fresh message list for each call; nothing is shared between calls.
func (g Generator) request(prompt string) CompletionRequest {
	msgs := make([]Message, 0, 2)
	if g.Options.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: g.Options.System})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	return CompletionRequest{
		Messages:    msgs,
		Temperature: g.Options.Temperature,
		MaxTokens:   g.Options.MaxTokens,
	}
}

// MultiSink fans a record out to every non-nil sink in order.
func MultiSink(sinks ...RecordSink) RecordSink {
	var out []RecordSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return RecordSinkFunc(func(rec StoryRecord) error {
		for _, s := range out {
			if err := s.Append(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
