// Package sqlitestore is the reference persistence.Adapter implementation:
// a single SQLite file, guarded by an advisory file lock so two sessions
// never write the same store concurrently, written the way the teacher's
// pkg/database.Client wraps a pooled SQL connection behind a small typed
// API (NewClient/Close/Insert*/Get*), adapted here to an embedded driver
// with no pool to manage.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/seqtrack/seqtrack/internal/persistence"
	"github.com/seqtrack/seqtrack/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS flow_snapshots (
	flow_key            TEXT NOT NULL,
	flow_tag            TEXT NOT NULL,
	flow_label          TEXT NOT NULL,
	generation          INTEGER NOT NULL,
	packets_received    INTEGER NOT NULL,
	bytes_received      INTEGER NOT NULL,
	lost_packets        INTEGER NOT NULL,
	gap_count           INTEGER NOT NULL,
	late_drops          INTEGER NOT NULL,
	bandwidth_mbps       REAL NOT NULL,
	updated_at          TIMESTAMP NOT NULL,
	PRIMARY KEY (flow_key, generation)
);

CREATE TABLE IF NOT EXISTS sequence_gaps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	flow_key    TEXT NOT NULL,
	flow_label  TEXT NOT NULL,
	generation  INTEGER NOT NULL,
	expected    INTEGER NOT NULL,
	received    INTEGER NOT NULL,
	gap_size    INTEGER NOT NULL,
	observed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sequence_gaps_flow ON sequence_gaps(flow_key, generation);
`

// Store is the reference Adapter: one SQLite file plus an advisory lock
// file beside it.
type Store struct {
	db         *sql.DB
	fileLock   *flock.Flock
	generation int64
}

var _ persistence.Adapter = (*Store)(nil)

// Open creates (if needed) and opens the SQLite file at path, taking an
// advisory lock on path+".lock" so a second seqtrack session targeting the
// same file fails fast instead of corrupting it.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquire store lock")
	}
	if !locked {
		return nil, errors.Errorf("sqlitestore: %s is locked by another session", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		lock.Unlock()
		return nil, errors.Wrap(err, "open sqlite database")
	}
	db.SetMaxOpenConns(1) // mattn/go-sqlite3 does not support concurrent writers

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lock.Unlock()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &Store{db: db, fileLock: lock}, nil
}

// SnapshotFlows upserts one row per flow for the current generation.
func (s *Store) SnapshotFlows(ctx context.Context, snapshot []tracker.Snapshot) error {
	if len(snapshot) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.Wrap("snapshot_flows", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flow_snapshots (
			flow_key, flow_tag, flow_label, generation, packets_received,
			bytes_received, lost_packets, gap_count, late_drops, bandwidth_mbps, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_key, generation) DO UPDATE SET
			packets_received = excluded.packets_received,
			bytes_received   = excluded.bytes_received,
			lost_packets     = excluded.lost_packets,
			gap_count        = excluded.gap_count,
			late_drops       = excluded.late_drops,
			bandwidth_mbps    = excluded.bandwidth_mbps,
			updated_at       = excluded.updated_at
	`)
	if err != nil {
		return persistence.Wrap("snapshot_flows", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, snap := range snapshot {
		key := snap.FlowID.Key()
		if _, err := stmt.ExecContext(ctx,
			key.String(), key.Tag.String(), snap.FlowID.String(), s.generation,
			snap.PacketsReceived, snap.BytesReceived, snap.LostPackets,
			snap.GapCount, snap.LateDrops, snap.BandwidthMbps, now,
		); err != nil {
			return persistence.Wrap("snapshot_flows", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.Wrap("snapshot_flows", err)
	}
	return nil
}

// RecordGaps appends a batch of SequenceGap rows.
func (s *Store) RecordGaps(ctx context.Context, gaps []tracker.SequenceGap) error {
	if len(gaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.Wrap("record_gaps", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sequence_gaps (flow_key, flow_label, generation, expected, received, gap_size, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return persistence.Wrap("record_gaps", err)
	}
	defer stmt.Close()

	for _, g := range gaps {
		key := g.FlowID.Key()
		if _, err := stmt.ExecContext(ctx,
			key.String(), g.FlowID.String(), s.generation,
			g.Expected, g.Received, g.GapSize, g.Timestamp,
		); err != nil {
			return persistence.Wrap("record_gaps", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.Wrap("record_gaps", err)
	}
	return nil
}

// OnLoopBoundary advances the generation counter; subsequent snapshots and
// gaps are recorded under the new generation, keeping each replay loop's
// statistics segmented per spec §4.6.
func (s *Store) OnLoopBoundary(_ context.Context) error {
	s.generation++
	return nil
}

// Close releases the database handle and the advisory lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.fileLock.Unlock()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}
