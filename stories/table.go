package stories

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/theimaginaryfoundation/gpt-stories/stories/fileutils"
)

// Table is a CSV file held in memory. Columns the tools do not know about are carried through untouched.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV with a header row. Short rows are padded to the header width; a row wider
// than the header is an error.
func ReadTable(path string) (Table, error) {
	f, err := openInput(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	records, err := readCSV(f)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("read %s: %w", path, io.ErrUnexpectedEOF)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := Table{Header: header, Rows: make([][]string, 0, len(records)-1)}
	for i, r := range records[1:] {
		if len(r) > len(header) {
			return Table{}, fmt.Errorf("read %s: row %d has %d fields, header has %d: %w", path, i+2, len(r), len(header), ErrTooManyFields)
		}
		if len(r) < len(header) {
			padded := make([]string, len(header))
			copy(padded, r)
			r = padded
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

// Col returns the index of the named column, or -1.
func (t Table) Col(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Require returns the index of the named column or an ErrMissingColumn error.
func (t Table) Require(name string) (int, error) {
	if i := t.Col(name); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w %q", ErrMissingColumn, name)
}

// Column returns a copy of the named column's values.
func (t Table) Column(name string) ([]string, error) {
	idx, err := t.Require(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// AppendColumn adds a column at the right edge. values must have one entry per row.
func (t *Table) AppendColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("AppendColumn %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	if t.Col(name) >= 0 {
		return fmt.Errorf("AppendColumn: column %q already exists", name)
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Head returns a table with the first n rows. It fails with ErrNotEnoughData when fewer exist.
func (t Table) Head(n int) (Table, error) {
	if n < 0 {
		return Table{}, errors.New("Head: n must be >= 0")
	}
	if n > len(t.Rows) {
		return Table{}, fmt.Errorf("%w: requested %d stories, but only %d available", ErrNotEnoughData, n, len(t.Rows))
	}
	return Table{Header: t.Header, Rows: t.Rows[:n]}, nil
}

// WriteTable writes t to path atomically with every field quoted.
func WriteTable(path string, t Table) error {
	if path == "" {
		return errors.New("WriteTable: path is empty")
	}
	return fileutils.WriteAtomic(path, 0o644, func(w io.Writer) error {
		cw := newQuoteAllWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return err
		}
		return cw.WriteAll(t.Rows)
	})
}
