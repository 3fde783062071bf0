package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j := openTemp(t)

	run, err := j.StartRun(ctx, Run{OutPath: "out.csv", Topics: "Norwegian,Australian", PerTopic: 2, Model: "gpt-4o-mini"})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	sink := j.Sink(ctx, run.ID)
	recs := []stories.StoryRecord{
		{ID: "Norwegian_1", Story: "A troll, a fjord.", Prompt: "p1", Topic: "Norwegian"},
		{ID: "Norwegian_2", Story: "Skis and \"snow\".", Prompt: "p1", Topic: "Norwegian"},
	}
	for _, r := range recs {
		require.NoError(t, sink.Append(r))
	}
	// Re-appending on resume must not fail or duplicate.
	require.NoError(t, sink.Append(recs[0]))

	found, ok, err := j.OpenRun(ctx, "out.csv", "Norwegian,Australian", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, run.ID, found.ID)

	entries, err := j.Entries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, entries[1].Seq)
	require.Equal(t, recs[1], entries[1].Record())

	existing, err := j.Existing(ctx, run.ID)
	require.NoError(t, err)
	require.Contains(t, existing, "Norwegian_1")

	require.NoError(t, j.CompleteRun(ctx, run.ID))
	_, ok, err = j.OpenRun(ctx, "out.csv", "Norwegian,Australian", 2)
	require.NoError(t, err)
	require.False(t, ok, "completed runs are not resumable")
}

func TestJournal_OpenRunMatchesParameters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j := openTemp(t)

	_, err := j.StartRun(ctx, Run{OutPath: "a.csv", Topics: "Japanese", PerTopic: 3, Model: "m"})
	require.NoError(t, err)

	_, ok, err := j.OpenRun(ctx, "a.csv", "Japanese", 4)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = j.OpenRun(ctx, "b.csv", "Japanese", 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJournal_CompleteUnknownRun(t *testing.T) {
	t.Parallel()
	j := openTemp(t)
	require.Error(t, j.CompleteRun(context.Background(), "nope"))
}

func TestSeqFromID(t *testing.T) {
	t.Parallel()
	cases := map[string]int{
		"Norwegian_1":        1,
		"Native American_12": 12,
		"weird_topic_3":      3,
		"noseq":              0,
		"bad_x":              0,
	}
	for id, want := range cases {
		if got := seqFromID(id); got != want {
			t.Fatalf("seqFromID(%q)=%d, want %d", id, got, want)
		}
	}
}
