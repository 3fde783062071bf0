package stories

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// CountryDatasetPath is the conventional location of a country's story dataset under dataDir.
func CountryDatasetPath(dataDir, country string) string {
	return filepath.Join(dataDir, country, country+"_stories.csv")
}

// ExportTexts writes the first n stories of inPath to outDir as "<Story ID>.txt" and returns the paths.
// Nothing is written when the input is missing or has fewer than n rows.
func ExportTexts(inPath, outDir string, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("ExportTexts: n must be >= 1, got %d", n)
	}
	t, err := ReadTable(inPath)
	if err != nil {
		return nil, err
	}
	head, err := t.Head(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}
	idCol, err := head.Require(StoryIDColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}
	storyCol, err := head.Require(StoryColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inPath, err)
	}

	names := make([]string, len(head.Rows))
	for i, row := range head.Rows {
		name, err := textFileName(row[idCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		names[i] = name
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	paths := make([]string, 0, len(head.Rows))
	for i, row := range head.Rows {
		p := filepath.Join(outDir, names[i])
		if err := fileutils.WriteFileAtomicSameDir(p, []byte(row[storyCol]), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func textFileName(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("story ID %q cannot be used as a file name", id)
	}
	return id + ".txt", nil
}
