package stories

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// ExtractedTerms is the structured response for name and noun phrase extraction.
type ExtractedTerms struct {
	Terms []string `json:"terms" jsonschema_description:"Each distinct item exactly as it appears in the story, in order of first appearance."`
}

// Extraction describes one kind of term pulled out of each story.
type Extraction struct {
	Name         string
	Column       string
	FilePrefix   string
	Instructions string
	// Schema is the JSON schema for ExtractedTerms.
	Schema map[string]any
}

func NamesExtraction(schema map[string]any) Extraction {
	return Extraction{
		Name:       "story_names",
		Column:     "Name",
		FilePrefix: "names_",
		Instructions: "You extract the names of characters, people and named creatures from a short children's story. " +
			"Return each name once. Do not include place names, common nouns or titles without a name.",
		Schema: schema,
	}
}

func NounPhrasesExtraction(schema map[string]any) Extraction {
	return Extraction{
		Name:       "story_noun_phrases",
		Column:     "Noun Phrase",
		FilePrefix: "noun_phrases_",
		Instructions: "You extract the noun phrases from a short children's story. A noun phrase is a noun with its " +
			"determiners and modifiers, for example \"the ancient tree\". Return each phrase once, lowercased " +
			"unless it contains a proper name.",
		Schema: schema,
	}
}

// OutputName is the default file name for the extraction of inPath.
func (x Extraction) OutputName(inPath string) string {
	return x.FilePrefix + filepath.Base(filepath.Clean(inPath))
}

type ExtractOptions struct {
	MaxTokens   int
	Concurrency int
	Overwrite   bool
	Logger      *zap.Logger
}

// Extractor runs one structured request per story and writes the results as a long table
// with one row per (story, term).
type Extractor struct {
	Completer StructuredCompleter
	Options   ExtractOptions
}

// ExtractFile writes "Story ID,<Column>" rows for every term found in inPath and returns how many
// stories mention each term.
func (e Extractor) ExtractFile(ctx context.Context, x Extraction, inPath, outPath string) (TermTally, error) {
	if e.Completer == nil {
		return TermTally{}, errors.New("ExtractFile: completer is nil")
	}
	if x.Schema == nil {
		return TermTally{}, fmt.Errorf("ExtractFile: %s schema is nil", x.Name)
	}
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(inPath), x.OutputName(inPath))
	}
	if err := fileutils.CheckWritable(outPath, e.Options.Overwrite); err != nil {
		return TermTally{}, err
	}

	t, err := ReadTable(inPath)
	if err != nil {
		return TermTally{}, err
	}
	idCol, err := t.Require(StoryIDColumn)
	if err != nil {
		return TermTally{}, fmt.Errorf("%s: %w", inPath, err)
	}
	storyCol, err := t.Require(StoryColumn)
	if err != nil {
		return TermTally{}, fmt.Errorf("%s: %w", inPath, err)
	}

	log := loggerOrNop(e.Options.Logger)
	total := len(t.Rows)
	perStory, err := mapRows(ctx, total, e.Options.Concurrency, func(ctx context.Context, i int) ([]string, error) {
		var resp ExtractedTerms
		err := e.Completer.CompleteJSON(ctx, StructuredRequest{
			Name:         x.Name,
			Description:  x.Column + " list",
			Instructions: x.Instructions,
			Input:        t.Rows[i][storyCol],
			Schema:       x.Schema,
			MaxTokens:    e.Options.MaxTokens,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("%s row %d of %s: %w", x.Name, i+1, inPath, err)
		}
		terms := dedupeTerms(resp.Terms)
		log.Info("extracted", zap.String("kind", x.Column), zap.Int("n", i+1), zap.Int("of", total), zap.Int("terms", len(terms)))
		return terms, nil
	})
	if err != nil {
		return TermTally{}, err
	}

	out := Table{Header: []string{StoryIDColumn, x.Column}}
	var tally TermTally
	for i, terms := range perStory {
		id := t.Rows[i][idCol]
		for _, term := range terms {
			out.Rows = append(out.Rows, []string{id, term})
		}
		tally.Add(id, terms)
	}
	if err := WriteTable(outPath, out); err != nil {
		return TermTally{}, fmt.Errorf("write %s: %w", outPath, err)
	}
	log.Info("extraction complete", zap.String("out", outPath), zap.Int("rows", len(out.Rows)))
	return tally, nil
}

// TermCount is how many stories mention a term.
type TermCount struct {
	Term    string
	Stories int
	First   string
}

// TermTally counts terms across stories case-insensitively, keeping the first spelling seen.
type TermTally struct {
	entries []TermCount
	index   map[string]int
}

// Add counts each distinct term of one story once.
func (t *TermTally) Add(storyID string, terms []string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	for _, term := range dedupeTerms(terms) {
		key := strings.ToLower(term)
		if i, ok := t.index[key]; ok {
			t.entries[i].Stories++
			continue
		}
		t.entries = append(t.entries, TermCount{Term: term, Stories: 1, First: storyID})
		t.index[key] = len(t.entries) - 1
	}
}

// Counts returns the terms with at least minStories mentions, most frequent first, then alphabetically.
func (t TermTally) Counts(minStories int) []TermCount {
	out := make([]TermCount, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Stories >= minStories {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stories != out[j].Stories {
			return out[i].Stories > out[j].Stories
		}
		return strings.ToLower(out[i].Term) < strings.ToLower(out[j].Term)
	})
	return out
}

// WriteTallyTable writes "<column>,Stories,First Story ID" rows.
func WriteTallyTable(path, column string, counts []TermCount) error {
	t := Table{Header: []string{column, "Stories", "First " + StoryIDColumn}}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Term, fmt.Sprint(c.Stories), c.First})
	}
	return WriteTable(path, t)
}

func dedupeTerms(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
