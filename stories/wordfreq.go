package stories

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStopwords are dropped before counting.
var DefaultStopwords = []string{
	"a", "about", "after", "all", "an", "and", "are", "as", "at", "be", "because", "been", "but", "by",
	"can", "for", "from", "has", "have", "her", "hers", "him", "his", "how", "i", "in", "into", "is", "it",
	"its", "me", "my", "of", "on", "or", "our", "she", "so", "that", "the", "their", "them", "then", "there",
	"they", "this", "to", "up", "was", "we", "were", "what", "when", "where", "which", "while", "who", "will",
	"with", "you", "your",
}

// CountryDataset is a story dataset attributed to one country.
type CountryDataset struct {
	Country string
	Path    string
}

type WordFrequencyOptions struct {
	// MinLength drops shorter tokens (in runes).
	MinLength int
	Stopwords []string
	// Column is the text column to count; empty means Story.
	Column string
}

func DefaultWordFrequencyOptions() WordFrequencyOptions {
	return WordFrequencyOptions{MinLength: 3, Stopwords: DefaultStopwords}
}

// BuildFrequencyTable counts words per country across the given datasets. Rows are sorted by
// global frequency, descending.
func BuildFrequencyTable(datasets []CountryDataset, opts WordFrequencyOptions) (FrequencyTable, error) {
	if len(datasets) == 0 {
		return FrequencyTable{}, errors.New("BuildFrequencyTable: no datasets")
	}
	col := opts.Column
	if col == "" {
		col = StoryColumn
	}
	stop := make(map[string]struct{}, len(opts.Stopwords))
	for _, w := range opts.Stopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	lower := cases.Lower(language.Und)

	ft := FrequencyTable{}
	index := make(map[string]int)
	seenCountry := make(map[string]struct{}, len(datasets))
	for _, ds := range datasets {
		if _, dup := seenCountry[ds.Country]; dup {
			return FrequencyTable{}, fmt.Errorf("BuildFrequencyTable: country %q listed twice", ds.Country)
		}
		seenCountry[ds.Country] = struct{}{}
		ft.Countries = append(ft.Countries, ds.Country)

		t, err := ReadTable(ds.Path)
		if err != nil {
			return FrequencyTable{}, err
		}
		texts, err := t.Column(col)
		if err != nil {
			return FrequencyTable{}, fmt.Errorf("%s: %w", ds.Path, err)
		}
		for _, text := range texts {
			for _, w := range Tokenize(lower.String(text)) {
				if len([]rune(w)) < opts.MinLength {
					continue
				}
				if _, skip := stop[w]; skip {
					continue
				}
				i, ok := index[w]
				if !ok {
					ft.Rows = append(ft.Rows, FrequencyRow{Word: w, Counts: map[string]float64{}})
					i = len(ft.Rows) - 1
					index[w] = i
				}
				ft.Rows[i].Counts[ds.Country]++
			}
		}
	}
	for i := range ft.Rows {
		for _, c := range ft.Countries {
			if _, ok := ft.Rows[i].Counts[c]; !ok {
				ft.Rows[i].Counts[c] = 0
			}
		}
		ft.Rows[i].recompute()
	}
	sortByGlobalFreq(ft.Rows)
	return ft, nil
}

// Tokenize splits text into words made of letters, digits and inner apostrophes or hyphens.
// A trailing possessive 's is removed.
func Tokenize(text string) []string {
	var out []string
	var cur []rune
	flush := func() {
		w := strings.Trim(string(cur), "'-’")
		w = strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "’s")
		if w != "" {
			out = append(out, w)
		}
		cur = cur[:0]
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur = append(cur, r)
		case (r == '\'' || r == '’' || r == '-') && len(cur) > 0:
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return out
}
