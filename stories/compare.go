package stories

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Built-in word lists for compare-words.
var (
	ConflictWords = []string{
		"battle", "clash", "conflict", "fight",
		"protest", "soldier", "violence", "war", "warrior",
		"gun", "sword", "knife", "weapon", "army", "military",
	}
	SupernaturalWords = []string{"magic", "guardian", "ghost", "spirit", "ritual", "curse", "fairy"}
)

// WordList resolves a built-in list name.
func WordList(name string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "conflict":
		return ConflictWords, nil
	case "supernatural":
		return SupernaturalWords, nil
	default:
		return nil, fmt.Errorf("unknown word list %q (want conflict or supernatural)", name)
	}
}

const DefaultCompareTop = 10

// CountryCount is one entry of a word's country ranking.
type CountryCount struct {
	Rank    int
	Country string
	Count   float64
}

// WordRanking lists the countries using a word most often.
type WordRanking struct {
	Word string
	Top  []CountryCount
}

// CompareWords ranks the two-letter country columns of ft by count for each word in words, keeping the
// top entries. Words absent from the table are skipped; the result follows the order of words.
func CompareWords(ft FrequencyTable, words []string, top int) []WordRanking {
	if top <= 0 {
		top = DefaultCompareTop
	}
	var countries []string
	for _, c := range ft.Countries {
		if IsCountryCode(c) {
			countries = append(countries, c)
		}
	}
	byWord := make(map[string]FrequencyRow, len(ft.Rows))
	for _, r := range ft.Rows {
		if _, ok := byWord[r.Word]; !ok {
			byWord[r.Word] = r
		}
	}

	var out []WordRanking
	for _, w := range words {
		row, ok := byWord[w]
		if !ok {
			continue
		}
		counts := make([]CountryCount, 0, len(countries))
		for _, c := range countries {
			counts = append(counts, CountryCount{Country: c, Count: row.Counts[c]})
		}
		sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
		if len(counts) > top {
			counts = counts[:top]
		}
		for i := range counts {
			counts[i].Rank = i + 1
		}
		out = append(out, WordRanking{Word: w, Top: counts})
	}
	return out
}

// WriteRankings writes the long table Word,Rank,Country,Count.
func WriteRankings(path string, rankings []WordRanking) error {
	t := Table{Header: []string{WordColumn, "Rank", "Country", "Count"}}
	for _, r := range rankings {
		for _, c := range r.Top {
			t.Rows = append(t.Rows, []string{r.Word, strconv.Itoa(c.Rank), c.Country, formatCount(c.Count)})
		}
	}
	return WriteTable(path, t)
}
