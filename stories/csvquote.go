package stories

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// quoteAllWriter writes CSV with every field quoted. encoding/csv only quotes fields that need it.
type quoteAllWriter struct {
	w *bufio.Writer
}

func newQuoteAllWriter(w io.Writer) *quoteAllWriter {
	return &quoteAllWriter{w: bufio.NewWriter(w)}
}

func (q *quoteAllWriter) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if err := q.w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := q.w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := q.w.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := q.w.WriteByte('"'); err != nil {
			return err
		}
	}
	return q.w.WriteByte('\n')
}

func (q *quoteAllWriter) WriteAll(records [][]string) error {
	for _, r := range records {
		if err := q.Write(r); err != nil {
			return err
		}
	}
	return q.Flush()
}

func (q *quoteAllWriter) Flush() error {
	return q.w.Flush()
}

type csvState int

const (
	fieldStart csvState = iota
	inUnquoted
	inQuoted
	quoteInQuoted
)

// readCSV parses RFC 4180 CSV. Quoted fields keep their bytes exactly, \r included; encoding/csv
// folds \r\n inside quotes to \n. Records may differ in length. Blank lines are skipped.
func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	var (
		records [][]string
		record  []string
		field   strings.Builder
		state   = fieldStart
		line    = 1
	)
	endField := func() {
		record = append(record, field.String())
		field.Reset()
		state = fieldStart
	}
	endRecord := func() {
		endField()
		records = append(records, record)
		record = nil
	}
	// lineEnd reports whether b ends the record, consuming the \n of a \r\n pair.
	lineEnd := func(b byte) bool {
		if b == '\n' {
			return true
		}
		if b == '\r' {
			if next, err := br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = br.ReadByte()
				return true
			}
		}
		return false
	}

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch state {
		case fieldStart:
			switch {
			case b == '"':
				state = inQuoted
			case b == ',':
				endField()
			case lineEnd(b):
				if len(record) > 0 {
					endRecord()
				}
				line++
			default:
				field.WriteByte(b)
				state = inUnquoted
			}
		case inUnquoted:
			switch {
			case b == ',':
				endField()
			case b == '"':
				return nil, fmt.Errorf("line %d: bare \" in non-quoted field", line)
			case lineEnd(b):
				endRecord()
				line++
			default:
				field.WriteByte(b)
			}
		case inQuoted:
			if b == '"' {
				state = quoteInQuoted
				continue
			}
			if b == '\n' {
				line++
			}
			field.WriteByte(b)
		case quoteInQuoted:
			switch {
			case b == '"':
				field.WriteByte('"')
				state = inQuoted
			case b == ',':
				endField()
			case lineEnd(b):
				endRecord()
				line++
			default:
				return nil, fmt.Errorf("line %d: extraneous \" in field", line)
			}
		}
	}

	switch {
	case state == inQuoted:
		return nil, fmt.Errorf("line %d: %w in quoted field", line, io.ErrUnexpectedEOF)
	case state != fieldStart || len(record) > 0:
		endRecord()
	}
	return records, nil
}
