package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Scroll episodes table - a diagnostic log of every SCROLLING episode,
		// written once on End, never read by the frame thread.
		`CREATE TABLE IF NOT EXISTS scroll_episodes (
			id TEXT PRIMARY KEY,
			started_at_ms INTEGER NOT NULL,
			ended_at_ms INTEGER NOT NULL,
			peak_speed REAL NOT NULL DEFAULT 0,
			total_dy_px REAL NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_scroll_episodes_started_at ON scroll_episodes(started_at_ms)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
