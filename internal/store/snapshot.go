package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Ting2004/katachi/internal/snapshot"
)

// Meta keys. last_update marks a saved metrics half, tasks_saved_at a saved task half.
const (
	metaLastUpdate = "last_update"
	metaLastReset  = "last_reset"
	metaTasksSaved = "tasks_saved_at"
)

// Load reads the combined snapshot. It returns snapshot.ErrNotFound when
// neither half has been saved.
func (db *DB) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	meta, err := db.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	_, haveMetrics := meta[metaLastUpdate]
	_, haveTasks := meta[metaTasksSaved]
	if !haveMetrics && !haveTasks {
		return nil, snapshot.ErrNotFound
	}

	snap := &snapshot.Snapshot{}
	if haveMetrics {
		if snap.Metrics, err = db.loadMetrics(ctx, meta); err != nil {
			return nil, err
		}
	}
	if haveTasks {
		if snap.Tasks, err = db.loadTasks(ctx); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (db *DB) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (db *DB) loadMetrics(ctx context.Context, meta map[string]string) (*snapshot.Metrics, error) {
	lastUpdate, err := strconv.ParseFloat(meta[metaLastUpdate], 64)
	if err != nil {
		return nil, fmt.Errorf("meta last_update: %w", err)
	}
	m := &snapshot.Metrics{
		Metrics:    make(map[string]float64),
		LastUpdate: lastUpdate,
		LastReset:  meta[metaLastReset],
	}

	rows, err := db.QueryContext(ctx, "SELECT key, value FROM metrics")
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Metrics[k] = v
	}
	return m, rows.Err()
}

func (db *DB) loadTasks(ctx context.Context) (snapshot.Tasks, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, effect, type, label, completed, count FROM tasks ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make(snapshot.Tasks)
	for rows.Next() {
		var (
			r         snapshot.TaskRecord
			effect    string
			completed int
		)
		if err := rows.Scan(&r.Name, &effect, &r.Type, &r.Label, &completed, &r.Count); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(effect), &r.Effect); err != nil {
			return nil, fmt.Errorf("task %q effect: %w", r.Name, err)
		}
		r.Completed = completed != 0
		out[r.Name] = r
	}
	return out, rows.Err()
}

// Save replaces the stored snapshot in one transaction. A nil half is left as stored.
func (db *DB) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("save: nil snapshot")
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if snap.Metrics != nil {
			if err := saveMetrics(ctx, tx, snap.Metrics); err != nil {
				return err
			}
		}
		if snap.Tasks != nil {
			return saveTasks(ctx, tx, snap.Tasks)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func saveMetrics(ctx context.Context, tx *sql.Tx, m *snapshot.Metrics) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM metrics"); err != nil {
		return fmt.Errorf("clear metrics: %w", err)
	}
	for k, v := range m.Metrics {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metrics (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("insert metric %s: %w", k, err)
		}
	}
	if err := putMeta(ctx, tx, metaLastUpdate, strconv.FormatFloat(m.LastUpdate, 'f', -1, 64)); err != nil {
		return err
	}
	if m.LastReset != "" {
		return putMeta(ctx, tx, metaLastReset, m.LastReset)
	}
	return nil
}

func saveTasks(ctx context.Context, tx *sql.Tx, recs snapshot.Tasks) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	now := time.Now().UnixMilli()
	for name, r := range recs {
		effect := r.Effect
		if effect == nil {
			effect = map[string]int{}
		}
		data, err := json.Marshal(effect)
		if err != nil {
			return fmt.Errorf("encode effect %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (name, effect, type, label, completed, count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			name, string(data), r.Type, r.Label, boolToInt(r.Completed), r.Count, now,
		); err != nil {
			return fmt.Errorf("insert task %q: %w", name, err)
		}
	}
	return putMeta(ctx, tx, metaTasksSaved, strconv.FormatInt(now, 10))
}

func putMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put meta %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
