package store

import (
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Episode is one completed SCROLLING episode, logged for diagnostics only —
// nothing on the frame thread ever reads it back.
type Episode struct {
	ID          string
	StartedAtMs int64
	EndedAtMs   int64
	PeakSpeed   float64
	TotalDyPx   float64
}

// EpisodeRepository provides read/write access to the scroll_episodes table.
type EpisodeRepository struct {
	db *sql.DB
}

// Episodes returns the episode repository for this store.
func (s *Store) Episodes() *EpisodeRepository {
	return &EpisodeRepository{db: s.db}
}

// Create inserts a completed episode.
func (r *EpisodeRepository) Create(e Episode) error {
	_, err := r.db.Exec(
		`INSERT INTO scroll_episodes (id, started_at_ms, ended_at_ms, peak_speed, total_dy_px)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.StartedAtMs, e.EndedAtMs, e.PeakSpeed, e.TotalDyPx,
	)
	return err
}

// List retrieves episodes, most recent first, capped at limit.
func (r *EpisodeRepository) List(limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, started_at_ms, ended_at_ms, peak_speed, total_dy_px
		 FROM scroll_episodes ORDER BY started_at_ms DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.StartedAtMs, &e.EndedAtMs, &e.PeakSpeed, &e.TotalDyPx); err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// Latest returns the most recently started episode, or ErrNotFound if the
// log is empty.
func (r *EpisodeRepository) Latest() (Episode, error) {
	var e Episode
	err := r.db.QueryRow(
		`SELECT id, started_at_ms, ended_at_ms, peak_speed, total_dy_px
		 FROM scroll_episodes ORDER BY started_at_ms DESC LIMIT 1`,
	).Scan(&e.ID, &e.StartedAtMs, &e.EndedAtMs, &e.PeakSpeed, &e.TotalDyPx)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, ErrNotFound
	}
	return e, err
}

// EpisodeLoggerBufferSize bounds how many completed episodes may queue
// waiting for the background writer before new ones are dropped.
const EpisodeLoggerBufferSize = 16

// EpisodeLogger accepts completed episodes off the frame thread via a
// buffered channel and persists them from a dedicated goroutine, so a slow
// or contended database write can never stall a per-frame Dispatch call.
type EpisodeLogger struct {
	repo   *EpisodeRepository
	ch     chan Episode
	logger *slog.Logger

	closeOnce  sync.Once
	dropWarned bool
}

// NewEpisodeLogger returns an EpisodeLogger writing through s.
func NewEpisodeLogger(s *Store, logger *slog.Logger) *EpisodeLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EpisodeLogger{
		repo:   s.Episodes(),
		ch:     make(chan Episode, EpisodeLoggerBufferSize),
		logger: logger,
	}
}

// Run drains the queue until ch is closed by Close. Intended to run in its
// own goroutine for the lifetime of the process.
func (l *EpisodeLogger) Run() {
	for e := range l.ch {
		if err := l.repo.Create(e); err != nil {
			l.logger.Error("episode log write failed", "error", err, "episode_id", e.ID)
		}
	}
}

// Close signals Run to stop once the queue drains. Safe to call more than
// once, since App.Stop can race a quit request against a signal handler.
func (l *EpisodeLogger) Close() {
	l.closeOnce.Do(func() { close(l.ch) })
}

// RecordEpisode enqueues a completed episode without blocking. If the
// background writer has fallen behind and the buffer is full, the episode
// is dropped and a warning logged once, matching the HUD hub's
// slow-consumer-drop policy — diagnostic logging must never slow the frame
// thread down.
func (l *EpisodeLogger) RecordEpisode(startedAtMs, endedAtMs int64, peakSpeed, totalDyPx float64) {
	e := Episode{
		ID:          uuid.NewString(),
		StartedAtMs: startedAtMs,
		EndedAtMs:   endedAtMs,
		PeakSpeed:   peakSpeed,
		TotalDyPx:   totalDyPx,
	}
	select {
	case l.ch <- e:
	default:
		if !l.dropWarned {
			l.logger.Warn("episode log queue full, dropping episode")
			l.dropWarned = true
		}
	}
}
