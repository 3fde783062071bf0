package stories

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// DefaultPromptTemplate is the story request sent for every topic.
const DefaultPromptTemplate = "Write a 50 word plot summary for a potential {{.Topic}} children's novel."

// PromptBuilder renders one prompt per topic from a text/template referencing {{.Topic}}.
type PromptBuilder struct {
	Template string
}

// BuildPrompts renders the default template for each topic.
func BuildPrompts(topics []string) ([]string, error) {
	return PromptBuilder{}.Build(topics)
}

// Build returns exactly one prompt per topic, in order. On any error no prompts are returned.
func (b PromptBuilder) Build(topics []string) ([]string, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	if err := ValidateTopics(topics); err != nil {
		return nil, err
	}

	tmpl, err := b.parse()
	if err != nil {
		return nil, err
	}

	prompts := make([]string, 0, len(topics))
	for _, topic := range topics {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, struct{ Topic string }{Topic: topic}); err != nil {
			return nil, fmt.Errorf("render prompt for %q: %w", topic, err)
		}
		prompts = append(prompts, sb.String())
	}
	return prompts, nil
}

func (b PromptBuilder) parse() (*template.Template, error) {
	src := b.Template
	if strings.TrimSpace(src) == "" {
		src = DefaultPromptTemplate
	}
	if !strings.Contains(src, ".Topic") {
		return nil, errors.New("prompt template must reference {{.Topic}}")
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return tmpl, nil
}

// ValidateTopics rejects blank and repeated topics; repeated topics would produce colliding story IDs.
func ValidateTopics(topics []string) error {
	seen := make(map[string]struct{}, len(topics))
	for i, t := range topics {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("topic %d is blank", i+1)
		}
		if _, ok := seen[t]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateTopic, t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// SplitTopics parses a comma-separated topic list as given on the command line.
func SplitTopics(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StoryID is the record identifier for the seq-th (1-based) story of a topic.
func StoryID(topic string, seq int) string {
	return fmt.Sprintf("%s_%d", topic, seq)
}

func parseRowTemplate(name, src, fallback string) (*template.Template, error) {
	if strings.TrimSpace(src) == "" {
		src = fallback
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt: %w", name, err)
	}
	return tmpl, nil
}

func renderRow(tmpl *template.Template, story string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, struct{ Story string }{Story: story}); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
