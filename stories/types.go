package stories

import (
	"context"
	"errors"
	"io/fs"
)

var (
	ErrInputNotFound  = errors.New("input file does not exist")
	ErrMissingColumn  = errors.New("missing required column")
	ErrNotEnoughData  = errors.New("not enough data")
	ErrNoTopics       = errors.New("no topics given")
	ErrDuplicateTopic = errors.New("duplicate topic")
	ErrTooManyFields  = errors.New("row has more fields than the header")

	// ErrOutputExists matches fs.ErrExist so refusals from fileutils.CheckWritable satisfy errors.Is.
	ErrOutputExists = fs.ErrExist
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a model request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a single stateless text request. Nothing is carried over between requests.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	// MaxTokens caps the response length; 0 leaves it to the provider.
	MaxTokens int
}

// Completer sends one request and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StructuredRequest asks for a JSON object matching Schema.
type StructuredRequest struct {
	Name         string
	Description  string
	Instructions string
	Input        string
	Schema       map[string]any
	MaxTokens    int
}

// StructuredCompleter decodes a schema-constrained model response into out.
type StructuredCompleter interface {
	CompleteJSON(ctx context.Context, req StructuredRequest, out any) error
}

// StoryRecord is one generated story and its provenance.
type StoryRecord struct {
	ID     string
	Story  string
	Prompt string
	Topic  string
}

// RecordSink receives each record as soon as it has been generated.
type RecordSink interface {
	Append(rec StoryRecord) error
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(rec StoryRecord) error

func (f RecordSinkFunc) Append(rec StoryRecord) error { return f(rec) }
