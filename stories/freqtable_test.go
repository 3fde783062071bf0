package stories

import (
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const freqCSV = `Word,AU,NO,JP,global_freq,num_countries
forest,3,10,2,15,3
dragon,0,1,8,9,2
war,5,0,0,5,1
forest,1,1,1,3,3
magic,4,4,1,9,3
`

func loadSample(t *testing.T) FrequencyTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freq.csv")
	writeFile(t, path, freqCSV)
	ft, err := LoadFrequencyTable(path)
	require.NoError(t, err)
	return ft
}

func TestLoadFrequencyTable(t *testing.T) {
	t.Parallel()

	ft := loadSample(t)
	require.Equal(t, []string{"AU", "NO", "JP"}, ft.Countries)
	require.Len(t, ft.Rows, 5)
	require.Equal(t, 8.0, ft.Rows[1].Counts["JP"])
	require.Equal(t, 9.0, ft.Rows[1].GlobalFreq)
}

func TestLoadFrequencyTable_ComputesMissingAggregates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f.csv")
	writeFile(t, path, "Word,AU,NO\ntroll,0,4\nsea,2,2\n")
	ft, err := LoadFrequencyTable(path)
	require.NoError(t, err)
	require.Equal(t, 4.0, ft.Rows[0].GlobalFreq)
	require.Equal(t, 1, ft.Rows[0].NumCountries)
	require.Equal(t, 2, ft.Rows[1].NumCountries)
}

func TestTopK_SortedDistinctAndBounded(t *testing.T) {
	t.Parallel()

	ft := loadSample(t)
	for k := 0; k <= 6; k++ {
		top := ft.TopK(k)
		want := k
		if want > 4 {
			want = 4 // four distinct words
		}
		require.Len(t, top, want, "k=%d", k)
		seen := map[string]bool{}
		for i, r := range top {
			require.False(t, seen[r.Word], "duplicate %q", r.Word)
			seen[r.Word] = true
			if i > 0 {
				require.GreaterOrEqual(t, top[i-1].GlobalFreq, r.GlobalFreq)
			}
		}
	}

	var words []string
	for _, r := range ft.TopK(3) {
		words = append(words, r.Word)
	}
	// dragon and magic tie at 9; ties break alphabetically.
	require.Equal(t, []string{"forest", "dragon", "magic"}, words)
}

func TestSelectAndMelt(t *testing.T) {
	t.Parallel()

	ft := loadSample(t)
	rows := ft.Select([]string{"war", "dragon", "unicorn"})
	require.Len(t, rows, 2)
	require.Equal(t, "dragon", rows[0].Word)

	long := ft.Melt(rows)
	want := []LongRow{
		{Word: "dragon", Country: "AU", Frequency: 0},
		{Word: "dragon", Country: "NO", Frequency: 1},
		{Word: "dragon", Country: "JP", Frequency: 8},
		{Word: "war", Country: "AU", Frequency: 5},
		{Word: "war", Country: "NO", Frequency: 0},
		{Word: "war", Country: "JP", Frequency: 0},
	}
	if diff := cmp.Diff(want, long); diff != "" {
		t.Fatalf("melt mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantileLinear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []float64
		p    float64
		want float64
	}{
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
		{[]float64{0, 0, 0, 4}, 0.9, 2.8},
		{[]float64{3, 7}, 0.5, 5},
		{[]float64{2, 2}, 0.9, 2},
		{[]float64{6}, 0.9, 6},
		{[]float64{1, 5, 9}, 1, 9},
		{[]float64{1, 5, 9}, 0, 1},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, quantileLinear(tt.in, tt.p), 1e-9, "quantileLinear(%v, %v)", tt.in, tt.p)
	}
	require.True(t, math.IsNaN(quantileLinear(nil, 0.9)))
}

func TestWordStats_TiesAtQ90AreOutliers(t *testing.T) {
	t.Parallel()

	// Sorted [0 5 5] puts q90 at rank 1.8, between the two tied maxima.
	long := []LongRow{
		{Word: "troll", Country: "NO", Frequency: 5},
		{Word: "troll", Country: "SE", Frequency: 5},
		{Word: "troll", Country: "JP", Frequency: 0},
	}
	stats, err := WordStats(long)
	require.NoError(t, err)
	require.InDelta(t, 5.0, stats[0].Q90, 1e-9)
	var got []string
	for _, o := range stats[0].HighOutliers {
		got = append(got, o.Country)
	}
	require.Equal(t, []string{"NO", "SE"}, got)
}

func TestWordStats(t *testing.T) {
	t.Parallel()

	var long []LongRow
	for i := 1; i <= 10; i++ {
		long = append(long, LongRow{Word: "sea", Country: string(rune('A'+i-1)) + "X", Frequency: float64(i)})
	}
	long = append(long, LongRow{Word: "sky", Country: "NO", Frequency: 2}, LongRow{Word: "sky", Country: "AU", Frequency: 2})

	stats, err := WordStats(long)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	sea := stats[0]
	require.Equal(t, "sea", sea.Word)
	require.Equal(t, "JX", sea.MaxCountry)
	require.Equal(t, 10.0, sea.Max)
	require.Equal(t, 5.5, sea.Mean)
	require.InDelta(t, 9.1, sea.Q90, 1e-9)
	require.Len(t, sea.HighOutliers, 1)
	require.Equal(t, "JX", sea.HighOutliers[0].Country)
	require.True(t, sort.SliceIsSorted(sea.HighOutliers, func(i, j int) bool {
		return sea.HighOutliers[i].Frequency > sea.HighOutliers[j].Frequency
	}))

	// First country wins a tie for the maximum.
	require.Equal(t, "NO", stats[1].MaxCountry)

	_, err = WordStats(nil)
	require.Error(t, err)
}

func TestWriteFrequencyTable_RoundTrip(t *testing.T) {
	t.Parallel()

	ft := loadSample(t)
	path := filepath.Join(t.TempDir(), "again.csv")
	require.NoError(t, WriteFrequencyTable(path, ft))
	again, err := LoadFrequencyTable(path)
	require.NoError(t, err)
	if diff := cmp.Diff(ft, again); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
