package stories

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const (
	WordColumn         = "Word"
	GlobalFreqColumn   = "global_freq"
	NumCountriesColumn = "num_countries"
)

// FrequencyRow is one word with its per-country counts.
type FrequencyRow struct {
	Word         string
	Counts       map[string]float64
	GlobalFreq   float64
	NumCountries int
}

// FrequencyTable maps words to per-country counts. Countries keeps the column order of the file.
type FrequencyTable struct {
	Countries []string
	Rows      []FrequencyRow
}

// LongRow is one (word, country) cell of a melted frequency table.
type LongRow struct {
	Word      string
	Country   string
	Frequency float64
}

func isMetadataColumn(name string) bool {
	return name == WordColumn || name == GlobalFreqColumn || name == NumCountriesColumn
}

// IsCountryCode reports whether name is a two-letter uppercase country code column.
func IsCountryCode(name string) bool {
	if len(name) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if name[i] < 'A' || name[i] > 'Z' {
			return false
		}
	}
	return true
}

// LoadFrequencyTable reads a word frequency CSV. Every column other than Word, global_freq and
// num_countries is a country column. Missing aggregate columns are computed from the counts.
func LoadFrequencyTable(path string) (FrequencyTable, error) {
	t, err := ReadTable(path)
	if err != nil {
		return FrequencyTable{}, err
	}
	wordCol, err := t.Require(WordColumn)
	if err != nil {
		return FrequencyTable{}, fmt.Errorf("%s: %w", path, err)
	}
	globalCol := t.Col(GlobalFreqColumn)
	numCol := t.Col(NumCountriesColumn)

	ft := FrequencyTable{}
	countryIdx := make([]int, 0, len(t.Header))
	for i, h := range t.Header {
		if isMetadataColumn(h) {
			continue
		}
		ft.Countries = append(ft.Countries, h)
		countryIdx = append(countryIdx, i)
	}

	for rowNum, r := range t.Rows {
		row := FrequencyRow{Word: r[wordCol], Counts: make(map[string]float64, len(ft.Countries))}
		for k, idx := range countryIdx {
			v, err := parseCount(r[idx])
			if err != nil {
				return FrequencyTable{}, fmt.Errorf("%s row %d column %q: %w", path, rowNum+2, t.Header[idx], err)
			}
			row.Counts[ft.Countries[k]] = v
		}
		row.recompute()
		if globalCol >= 0 && strings.TrimSpace(r[globalCol]) != "" {
			if row.GlobalFreq, err = parseCount(r[globalCol]); err != nil {
				return FrequencyTable{}, fmt.Errorf("%s row %d %s: %w", path, rowNum+2, GlobalFreqColumn, err)
			}
		}
		if numCol >= 0 && strings.TrimSpace(r[numCol]) != "" {
			n, err := parseCount(r[numCol])
			if err != nil {
				return FrequencyTable{}, fmt.Errorf("%s row %d %s: %w", path, rowNum+2, NumCountriesColumn, err)
			}
			row.NumCountries = int(n)
		}
		ft.Rows = append(ft.Rows, row)
	}
	return ft, nil
}

func parseCount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (r *FrequencyRow) recompute() {
	r.GlobalFreq = 0
	r.NumCountries = 0
	for _, v := range r.Counts {
		r.GlobalFreq += v
		if v != 0 {
			r.NumCountries++
		}
	}
}

// WriteFrequencyTable writes Word, the country columns, global_freq and num_countries.
func WriteFrequencyTable(path string, ft FrequencyTable) error {
	t := Table{Header: make([]string, 0, len(ft.Countries)+3)}
	t.Header = append(t.Header, WordColumn)
	t.Header = append(t.Header, ft.Countries...)
	t.Header = append(t.Header, GlobalFreqColumn, NumCountriesColumn)
	for _, r := range ft.Rows {
		row := make([]string, 0, len(t.Header))
		row = append(row, r.Word)
		for _, c := range ft.Countries {
			row = append(row, formatCount(r.Counts[c]))
		}
		row = append(row, formatCount(r.GlobalFreq), strconv.Itoa(r.NumCountries))
		t.Rows = append(t.Rows, row)
	}
	return WriteTable(path, t)
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortByGlobalFreq(rows []FrequencyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].GlobalFreq != rows[j].GlobalFreq {
			return rows[i].GlobalFreq > rows[j].GlobalFreq
		}
		return rows[i].Word < rows[j].Word
	})
}

// TopK returns the k words with the highest global frequency, descending, ties broken by word.
// A word that appears on several rows is returned once. Fewer than k rows are returned only when
// the table has fewer distinct words.
func (ft FrequencyTable) TopK(k int) []FrequencyRow {
	if k <= 0 {
		return nil
	}
	rows := make([]FrequencyRow, len(ft.Rows))
	copy(rows, ft.Rows)
	sortByGlobalFreq(rows)

	seen := make(map[string]struct{}, k)
	out := make([]FrequencyRow, 0, k)
	for _, r := range rows {
		if _, ok := seen[r.Word]; ok {
			continue
		}
		seen[r.Word] = struct{}{}
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out
}

// Select returns the rows for words, sorted by global frequency like TopK. Unknown words are skipped.
func (ft FrequencyTable) Select(words []string) []FrequencyRow {
	want := make(map[string]struct{}, len(words))
	for _, w := range words {
		want[strings.TrimSpace(w)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(words))
	var out []FrequencyRow
	for _, r := range ft.Rows {
		if _, ok := want[r.Word]; !ok {
			continue
		}
		if _, dup := seen[r.Word]; dup {
			continue
		}
		seen[r.Word] = struct{}{}
		out = append(out, r)
	}
	sortByGlobalFreq(out)
	return out
}

// Melt reshapes rows into one LongRow per (word, country), words in the given order and countries in
// table column order.
func (ft FrequencyTable) Melt(rows []FrequencyRow) []LongRow {
	out := make([]LongRow, 0, len(rows)*len(ft.Countries))
	for _, r := range rows {
		for _, c := range ft.Countries {
			out = append(out, LongRow{Word: r.Word, Country: c, Frequency: r.Counts[c]})
		}
	}
	return out
}

// quantileLinear interpolates between the two closest ranks of sorted at position (n-1)*p, the
// way pandas' Series.quantile does by default. gonum's stat.LinInterp places ranks at n*p instead.
func quantileLinear(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// WordStat summarizes the distribution of one word across countries.
type WordStat struct {
	Word       string
	MaxCountry string
	Max        float64
	Mean       float64
	Q90        float64
	// HighOutliers are the countries at or above the 90th percentile, highest first.
	HighOutliers []LongRow
	Values       []float64
}

// WordStats groups melted rows by word, preserving first-seen word order.
func WordStats(long []LongRow) ([]WordStat, error) {
	if len(long) == 0 {
		return nil, errors.New("WordStats: no rows")
	}
	var order []string
	groups := make(map[string][]LongRow)
	for _, r := range long {
		if _, ok := groups[r.Word]; !ok {
			order = append(order, r.Word)
		}
		groups[r.Word] = append(groups[r.Word], r)
	}

	out := make([]WordStat, 0, len(order))
	for _, w := range order {
		g := groups[w]
		ws := WordStat{Word: w, MaxCountry: g[0].Country, Max: g[0].Frequency}
		ws.Values = make([]float64, len(g))
		for i, r := range g {
			ws.Values[i] = r.Frequency
			if r.Frequency > ws.Max {
				ws.Max = r.Frequency
				ws.MaxCountry = r.Country
			}
		}
		sorted := append([]float64(nil), ws.Values...)
		sort.Float64s(sorted)
		ws.Mean = stat.Mean(ws.Values, nil)
		ws.Q90 = quantileLinear(sorted, 0.9)

		for _, r := range g {
			if r.Frequency >= ws.Q90 {
				ws.HighOutliers = append(ws.HighOutliers, r)
			}
		}
		sort.SliceStable(ws.HighOutliers, func(i, j int) bool {
			return ws.HighOutliers[i].Frequency > ws.HighOutliers[j].Frequency
		})
		out = append(out, ws)
	}
	return out, nil
}
