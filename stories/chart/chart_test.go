package chart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

func TestBuildFlowchart_NorwegianCounts(t *testing.T) {
	t.Parallel()

	s := NorwegianStructure()
	fc, err := BuildFlowchart(s)
	require.NoError(t, err)

	require.Equal(t, 23, s.NodeCount())
	require.Equal(t, 34, s.EdgeCount())
	require.Equal(t, s.NodeCount(), fc.Graph.Nodes().Len())
	require.Len(t, fc.Edges, s.EdgeCount())
	require.Equal(t, s.EdgeCount(), fc.Graph.Edges().Len())
}

func TestFlowchart_NodeNamesInInsertionOrder(t *testing.T) {
	t.Parallel()

	fc, err := BuildFlowchart(NorwegianStructure())
	require.NoError(t, err)

	names := fc.NodeNames()
	require.Len(t, names, 23)
	require.Equal(t, NodeSetting, names[0])
	require.Equal(t, NodeProtagonist, names[1])
	for _, n := range names {
		require.Contains(t, fc.Nodes, n)
	}

	names[0] = "changed"
	require.Equal(t, NodeSetting, fc.NodeNames()[0])
}

func TestBuildFlowchart_Layout(t *testing.T) {
	t.Parallel()

	fc, err := BuildFlowchart(NorwegianStructure())
	require.NoError(t, err)

	pos := func(name string) [2]float64 {
		n := fc.Nodes[name]
		require.NotNil(t, n, name)
		return [2]float64{n.X, n.Y}
	}
	require.Equal(t, [2]float64{0, 0}, pos(NodeSetting))
	require.Equal(t, [2]float64{0, -1.5}, pos(NodeProtagonist))
	require.Equal(t, [2]float64{0, -11}, pos(NodeVillageFuture))
	require.Equal(t, [2]float64{-2.25, -0.5}, pos("Freya"))
	require.Equal(t, [2]float64{2.25, -0.5}, pos("Elin"))
	require.Equal(t, [2]float64{-1, -2.5}, pos("returns home \nfrom Oslo and"))
	require.Equal(t, [2]float64{0, -5}, pos("a rune-carved box"))
	require.Equal(t, [2]float64{-3, -7}, pos("people"))
	require.Equal(t, [2]float64{1, -9}, pos(NodeRestorationPersonal))
	require.Equal(t, "Coming to terms with self", fc.Nodes[NodeRestorationPersonal].Label)
}

func TestBuildFlowchart_EdgesFollowStructure(t *testing.T) {
	t.Parallel()

	fc, err := BuildFlowchart(StoryStructure{
		Protagonists:        []string{"Sol"},
		InstigatingEvents:   []string{"wakes"},
		QuestGiverLocations: []string{"a cave"},
		Opponents:           []string{"storms"},
	})
	require.NoError(t, err)

	want := []Edge{
		{NodeSetting, "Sol"}, {"Sol", NodeProtagonist},
		{NodeProtagonist, "wakes"}, {"wakes", NodeJourney},
		{NodeJourney, NodeQuestGiver},
		{NodeQuestGiver, "a cave"}, {"a cave", NodeConflict},
		{NodeQuestGiver, NodeConflict},
		{NodeConflict, "storms"}, {"storms", NodeRestoreBalance},
		{NodeRestoreBalance, NodeRestorationCommunity}, {NodeRestoreBalance, NodeRestorationPersonal},
		{NodeRestorationCommunity, NodeVillageFuture}, {NodeRestorationPersonal, NodeVillageFuture},
	}
	if diff := cmp.Diff(want, fc.Edges); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0.0, fc.Nodes["Sol"].X, "a single child is centered")
}

func TestBuildFlowchart_RejectsCollisions(t *testing.T) {
	t.Parallel()

	s := NorwegianStructure()
	s.Opponents = append(s.Opponents, NodeJourney)
	_, err := BuildFlowchart(s)
	require.Error(t, err)

	s = NorwegianStructure()
	s.Protagonists = nil
	_, err = BuildFlowchart(s)
	require.Error(t, err)
}

func TestSpreadX(t *testing.T) {
	t.Parallel()

	require.Equal(t, []float64{-1.5, 0, 1.5}, SpreadX(3, 0, 1.5))
	require.Equal(t, []float64{4}, SpreadX(1, 4, 2))
}

func TestFlowchart_ExportsDOTAndXLSX(t *testing.T) {
	t.Parallel()

	fc, err := BuildFlowchart(NorwegianStructure())
	require.NoError(t, err)

	b, err := fc.DOT()
	require.NoError(t, err)
	dot := string(b)
	require.Contains(t, dot, "digraph story_flowchart")
	require.Contains(t, dot, "pos=")
	require.Contains(t, dot, "restore_balance")

	path := filepath.Join(t.TempDir(), "edges.xlsx")
	require.NoError(t, fc.WriteEdgesXLSX(path))
	edges, err := ReadEdgesXLSX(path)
	require.NoError(t, err)
	if diff := cmp.Diff(fc.Edges, edges); diff != "" {
		t.Fatalf("xlsx edges mismatch (-want +got):\n%s", diff)
	}
}

func TestFlowchart_SavePlot(t *testing.T) {
	t.Parallel()

	fc, err := BuildFlowchart(NorwegianStructure())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "flow.png")
	require.NoError(t, fc.SavePlot(path, FlowchartTitle))
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, st.Size(), int64(0))
}

func TestSaveBoxplot(t *testing.T) {
	t.Parallel()

	long := []stories.LongRow{
		{Word: "forest", Country: "NO", Frequency: 10}, {Word: "forest", Country: "AU", Frequency: 3},
		{Word: "forest", Country: "JP", Frequency: 2}, {Word: "war", Country: "NO", Frequency: 0},
		{Word: "war", Country: "AU", Frequency: 5}, {Word: "war", Country: "JP", Frequency: 1},
	}
	stats, err := stories.WordStats(long)
	require.NoError(t, err)

	p, err := NewBoxplot(stats, DefaultBoxplotOptions(2))
	require.NoError(t, err)
	require.Equal(t, "Top 2 Most Used Words - Frequency Distribution Across Countries", p.Title.Text)
	require.InDelta(t, 11.2, p.Y.Max, 1e-9)

	for _, name := range []string{"box.png", "box.svg"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, SaveBoxplot(path, stats, DefaultBoxplotOptions(2)))
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NotEmpty(t, b)
		if strings.HasSuffix(name, ".svg") {
			require.Contains(t, string(b), "<svg")
		}
	}

	_, err = NewBoxplot(nil, DefaultBoxplotOptions(0))
	require.Error(t, err)
}
