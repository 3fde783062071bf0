package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// JSONPrompted gives structured output to providers without native schema support by appending
// the schema to the instructions and decoding the reply leniently.
type JSONPrompted struct {
	Completer stories.Completer
}

func (p JSONPrompted) CompleteJSON(ctx context.Context, req stories.StructuredRequest, out any) error {
	if p.Completer == nil {
		return errors.New("JSONPrompted: completer is nil")
	}

	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(req.Instructions))
	sys.WriteString("\n\nReturn only a JSON object (no markdown, no additional text) matching this JSON schema:\n")
	sys.WriteString(SchemaText(req.Schema))

	text, err := p.Completer.Complete(ctx, stories.CompletionRequest{
		Messages: []stories.Message{
			{Role: stories.RoleSystem, Content: sys.String()},
			{Role: stories.RoleUser, Content: req.Input},
		},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return err
	}
	if err := fileutils.DecodeModelJSON(text, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.Name, err)
	}
	return nil
}
