// Package journal records generated stories in SQLite as they are produced, so an interrupted
// generation run can be resumed without asking the model again for stories it already wrote.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

// Run describes one invocation of the generation loop.
type Run struct {
	ID          string     `db:"id"`
	OutPath     string     `db:"out_path"`
	Topics      string     `db:"topics"`
	PerTopic    int        `db:"per_topic"`
	Model       string     `db:"model"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Entry is one journaled story.
type Entry struct {
	RunID     string    `db:"run_id"`
	RecordID  string    `db:"record_id"`
	Topic     string    `db:"topic"`
	Seq       int       `db:"seq"`
	Prompt    string    `db:"prompt"`
	Story     string    `db:"story"`
	CreatedAt time.Time `db:"created_at"`
}

func (e Entry) Record() stories.StoryRecord {
	return stories.StoryRecord{ID: e.RecordID, Story: e.Story, Prompt: e.Prompt, Topic: e.Topic}
}

type Journal struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: path is empty")
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		out_path TEXT NOT NULL,
		topics TEXT NOT NULL,
		per_topic INTEGER NOT NULL,
		model TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stories (
		run_id TEXT NOT NULL REFERENCES runs(id),
		record_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		seq INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		story TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, record_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_out_path ON runs(out_path, started_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// StartRun inserts a new run. An empty ID is replaced with a fresh UUID.
func (j *Journal) StartRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = j.now()
	}
	r.CompletedAt = nil
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, out_path, topics, per_topic, model, started_at, completed_at)
		VALUES (:id, :out_path, :topics, :per_topic, :model, :started_at, :completed_at)`, r)
	if err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	return r, nil
}

// OpenRun returns the most recent unfinished run writing to outPath with the same topics and count.
func (j *Journal) OpenRun(ctx context.Context, outPath, topics string, perTopic int) (Run, bool, error) {
	var r Run
	err := j.db.GetContext(ctx, &r, `
		SELECT id, out_path, topics, per_topic, model, started_at, completed_at
		FROM runs
		WHERE out_path = ? AND topics = ? AND per_topic = ? AND completed_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`, outPath, topics, perTopic)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("find open run: %w", err)
	}
	return r, true, nil
}

// Record stores one story under runID. Storing the same record twice is a no-op.
func (j *Journal) Record(ctx context.Context, runID string, rec stories.StoryRecord) error {
	e := Entry{
		RunID:     runID,
		RecordID:  rec.ID,
		Topic:     rec.Topic,
		Seq:       seqFromID(rec.ID),
		Prompt:    rec.Prompt,
		Story:     rec.Story,
		CreatedAt: j.now(),
	}
	_, err := j.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO stories (run_id, record_id, topic, seq, prompt, story, created_at)
		VALUES (:run_id, :record_id, :topic, :seq, :prompt, :story, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("journal %s: %w", rec.ID, err)
	}
	return nil
}

// Entries returns the stories of a run in the order they were recorded.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	var out []Entry
	err := j.db.SelectContext(ctx, &out, `
		SELECT run_id, record_id, topic, seq, prompt, story, created_at
		FROM stories
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// Existing indexes a run's stories by record ID, ready for stories.GenerateOptions.Existing.
func (j *Journal) Existing(ctx context.Context, runID string) (map[string]stories.StoryRecord, error) {
	entries, err := j.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]stories.StoryRecord, len(entries))
	for _, e := range entries {
		out[e.RecordID] = e.Record()
	}
	return out, nil
}

func (j *Journal) CompleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET completed_at = ? WHERE id = ?`, j.now(), runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete run: unknown run %q", runID)
	}
	return nil
}

// Sink adapts the journal to stories.RecordSink for one run.
func (j *Journal) Sink(ctx context.Context, runID string) stories.RecordSink {
	return stories.RecordSinkFunc(func(rec stories.StoryRecord) error {
		return j.Record(ctx, runID, rec)
	})
}

func seqFromID(id string) int {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0
	}
	return n
}
