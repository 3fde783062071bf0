package stories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeCompleter answers with reply(req) and records every request it sees.
type fakeCompleter struct {
	mu     sync.Mutex
	reqs   []CompletionRequest
	reply  func(req CompletionRequest) (string, error)
	failAt int // 1-based call number that fails; 0 never fails
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	f.mu.Unlock()
	if f.failAt > 0 && n == f.failAt {
		return "", errors.New("upstream unavailable")
	}
	if f.reply != nil {
		return f.reply(req)
	}
	return fmt.Sprintf("story %d", n), nil
}

func (f *fakeCompleter) calls() []CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CompletionRequest(nil), f.reqs...)
}

// fakeStructured decodes answer(req) into out.
type fakeStructured struct {
	mu     sync.Mutex
	reqs   []StructuredRequest
	answer func(req StructuredRequest) (any, error)
}

func (f *fakeStructured) CompleteJSON(_ context.Context, req StructuredRequest, out any) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	v, err := f.answer(req)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

// storiesCSV builds a dataset CSV with n rows for topic.
func storiesCSV(topic string, n int) string {
	var sb strings.Builder
	sb.WriteString("\"Story ID\",\"Story\",\"Prompt\",\"Topic\"\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "\"%s_%d\",\"Story number %d about %s.\",\"p\",\"%s\"\n", topic, i, i, topic, topic)
	}
	return sb.String()
}
