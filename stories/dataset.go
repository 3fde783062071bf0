package stories

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// DatasetHeader is the column order of a persisted dataset.
var DatasetHeader = []string{"Story ID", "Story", "Prompt", "Topic"}

const PartialSuffix = ".partial"

func (r StoryRecord) row() []string {
	return []string{r.ID, r.Story, r.Prompt, r.Topic}
}

// WriteDataset writes records to path in one atomic pass.
func WriteDataset(path string, records []StoryRecord) error {
	if path == "" {
		return errors.New("WriteDataset: path is empty")
	}
	err := fileutils.WriteAtomic(path, 0o644, func(w io.Writer) error {
		cw := newQuoteAllWriter(w)
		if err := cw.Write(DatasetHeader); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write(r.row()); err != nil {
				return err
			}
		}
		return cw.Flush()
	})
	if err != nil {
		return fmt.Errorf("WriteDataset: %w", err)
	}
	return nil
}

// DatasetWriter persists records one at a time into <path>.partial so a failed run keeps what it produced.
// Commit moves the finished file to its final name.
type DatasetWriter struct {
	path      string
	f         *os.File
	cw        *quoteAllWriter
	count     int
	done      bool
	overwrite bool
}

// CreateDatasetWriter opens <path>.partial and writes the header. It refuses to start when path already
// exists unless overwrite is set.
func CreateDatasetWriter(path string, overwrite bool) (*DatasetWriter, error) {
	if path == "" {
		return nil, errors.New("CreateDatasetWriter: path is empty")
	}
	if err := fileutils.CheckWritable(path, overwrite); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("CreateDatasetWriter: mkdir: %w", err)
	}
	f, err := os.OpenFile(path+PartialSuffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("CreateDatasetWriter: %w", err)
	}
	dw := &DatasetWriter{path: path, f: f, cw: newQuoteAllWriter(f), overwrite: overwrite}
	if err := dw.cw.Write(DatasetHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := dw.cw.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return dw, nil
}

func (d *DatasetWriter) Path() string        { return d.path }
func (d *DatasetWriter) PartialPath() string { return d.path + PartialSuffix }
func (d *DatasetWriter) Count() int          { return d.count }

// Append writes and flushes one record.
func (d *DatasetWriter) Append(rec StoryRecord) error {
	if d.done {
		return errors.New("DatasetWriter: append after commit")
	}
	if err := d.cw.Write(rec.row()); err != nil {
		return err
	}
	if err := d.cw.Flush(); err != nil {
		return err
	}
	d.count++
	return nil
}

// Commit syncs, closes and renames the partial file to the final path.
func (d *DatasetWriter) Commit() error {
	if d.done {
		return nil
	}
	if err := d.cw.Flush(); err != nil {
		return err
	}
	if err := d.f.Sync(); err != nil {
		return err
	}
	if err := d.f.Close(); err != nil {
		return err
	}
	d.done = true
	if err := fileutils.CheckWritable(d.path, d.overwrite); err != nil {
		return err
	}
	if err := os.Rename(d.PartialPath(), d.path); err != nil {
		return fmt.Errorf("DatasetWriter: commit: %w", err)
	}
	return nil
}

// Close releases the file. Without a prior Commit the .partial file stays on disk.
func (d *DatasetWriter) Close() error {
	if d.done {
		return nil
	}
	d.done = true
	_ = d.cw.Flush()
	return d.f.Close()
}

// ReadDataset reads a dataset written by WriteDataset or DatasetWriter.
func ReadDataset(path string) ([]StoryRecord, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	cols := make([]int, len(DatasetHeader))
	for i, name := range DatasetHeader {
		idx := t.Col(name)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w %q", path, ErrMissingColumn, name)
		}
		cols[i] = idx
	}
	out := make([]StoryRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, StoryRecord{
			ID:     row[cols[0]],
			Story:  row[cols[1]],
			Prompt: row[cols[2]],
			Topic:  row[cols[3]],
		})
	}
	return out, nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrInputNotFound)
		}
		return nil, err
	}
	return f, nil
}
