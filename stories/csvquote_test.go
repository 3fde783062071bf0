package stories

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{"crlf line endings", "a,b\r\n1,2\r\n", [][]string{{"a", "b"}, {"1", "2"}}},
		{"quoted crlf kept", "\"x\r\ny\",z\n", [][]string{{"x\r\ny", "z"}}},
		{"lone cr kept", "\"a\rb\"\n", [][]string{{"a\rb"}}},
		{"doubled quote", "\"say \"\"hi\"\"\",2\n", [][]string{{"say \"hi\"", "2"}}},
		{"empty fields", ",,\n", [][]string{{"", "", ""}}},
		{"blank lines skipped", "a\n\n\nb\n", [][]string{{"a"}, {"b"}}},
		{"no trailing newline", "a,\"b\"", [][]string{{"a", "b"}}},
		{"ragged rows", "a,b,c\n1\n", [][]string{{"a", "b", "c"}, {"1"}}},
		{"empty input", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readCSV(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("readCSV: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadCSV_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := readCSV(strings.NewReader("a,\"open\nstill open")); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v, want io.ErrUnexpectedEOF", err)
	}
	if _, err := readCSV(strings.NewReader("a\nb\"c\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err=%v, want bare quote error on line 2", err)
	}
	if _, err := readCSV(strings.NewReader("\"a\"b\n")); err == nil {
		t.Fatalf("expected error for text after closing quote")
	}
}

func TestQuoteAllWriter_ReadBackKeepsCarriageReturns(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	w := newQuoteAllWriter(&sb)
	want := [][]string{{"Story"}, {"one\r\ntwo"}, {"three\r"}}
	if err := w.WriteAll(want); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	got, err := readCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("readCSV: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}
