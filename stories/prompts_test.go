package stories

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildPrompts_OnePerTopicWithSuffix(t *testing.T) {
	t.Parallel()

	topics := []string{"Norwegian", "Australian", "Native American", "Asian American"}
	prompts, err := BuildPrompts(topics)
	if err != nil {
		t.Fatalf("BuildPrompts: %v", err)
	}
	if len(prompts) != len(topics) {
		t.Fatalf("len=%d, want %d", len(prompts), len(topics))
	}
	for i, p := range prompts {
		if !strings.Contains(p, topics[i]) {
			t.Fatalf("prompt %q missing topic %q", p, topics[i])
		}
		if !strings.HasSuffix(p, "children's novel.") {
			t.Fatalf("prompt %q missing suffix", p)
		}
	}
	if want := "Write a 50 word plot summary for a potential Native American children's novel."; prompts[2] != want {
		t.Fatalf("prompts[2]=%q, want %q", prompts[2], want)
	}
}

func TestBuildPrompts_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		topics []string
		want   error
	}{
		{name: "empty", topics: nil, want: ErrNoTopics},
		{name: "duplicate", topics: []string{"Japanese", "Japanese"}, want: ErrDuplicateTopic},
		{name: "blank", topics: []string{"Japanese", "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			prompts, err := BuildPrompts(tc.topics)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			if prompts != nil {
				t.Fatalf("partial output %v", prompts)
			}
		})
	}
}

func TestPromptBuilder_CustomTemplate(t *testing.T) {
	t.Parallel()

	b := PromptBuilder{Template: "Tell a {{.Topic}} folk tale."}
	got, err := b.Build([]string{"Sami"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got[0] != "Tell a Sami folk tale." {
		t.Fatalf("got=%q", got[0])
	}

	if _, err := (PromptBuilder{Template: "no placeholder"}).Build([]string{"Sami"}); err == nil {
		t.Fatalf("expected error for template without topic")
	}
}

func TestSplitTopics(t *testing.T) {
	t.Parallel()

	got := SplitTopics(" Norwegian, Australian ,,Japanese ")
	want := []string{"Norwegian", "Australian", "Japanese"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got=%v, want %v", got, want)
	}
}
