package stories

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExportTexts_WritesFirstN(t *testing.T) {
	t.Parallel()

	data := t.TempDir()
	in := CountryDatasetPath(data, "AU")
	writeFile(t, in, storiesCSV("AU", 5))
	out := filepath.Join(t.TempDir(), "story_texts")

	paths, err := ExportTexts(in, out, 3)
	if err != nil {
		t.Fatalf("ExportTexts: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths=%v", paths)
	}
	if got := readFile(t, filepath.Join(out, "AU_2.txt")); got != "Story number 2 about AU." {
		t.Fatalf("AU_2.txt=%q", got)
	}
	if _, err := os.Stat(filepath.Join(out, "AU_4.txt")); !os.IsNotExist(err) {
		t.Fatalf("AU_4.txt should not exist")
	}
}

func TestExportTexts_NotEnoughDataWritesNothing(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "NO", "NO_stories.csv")
	writeFile(t, in, storiesCSV("NO", 30))
	out := filepath.Join(t.TempDir(), "texts")

	_, err := ExportTexts(in, out, 50)
	if !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("err=%v, want ErrNotEnoughData", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output dir should not be created, stat err=%v", err)
	}
}

func TestExportTexts_MissingInput(t *testing.T) {
	t.Parallel()

	_, err := ExportTexts(filepath.Join(t.TempDir(), "nope.csv"), t.TempDir(), 1)
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("err=%v, want ErrInputNotFound", err)
	}
}

func TestExportTexts_RejectsPathLikeIDs(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "s.csv")
	writeFile(t, in, "Story ID,Story\n../escape,x\n")
	if _, err := ExportTexts(in, t.TempDir(), 1); err == nil {
		t.Fatalf("expected error for path-like story ID")
	}
}
