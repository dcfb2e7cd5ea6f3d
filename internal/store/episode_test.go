package store

import "testing"

func TestEpisodeRepository_CreateAndList(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	if err := repo.Create(Episode{ID: "ep-1", StartedAtMs: 1000, EndedAtMs: 1500, PeakSpeed: 0.8, TotalDyPx: 240}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(Episode{ID: "ep-2", StartedAtMs: 2000, EndedAtMs: 2200, PeakSpeed: 0.3, TotalDyPx: 80}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	episodes, err := repo.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len(episodes) = %d, want 2", len(episodes))
	}
	// Most recent first.
	if episodes[0].ID != "ep-2" {
		t.Errorf("episodes[0].ID = %q, want ep-2", episodes[0].ID)
	}
}

func TestEpisodeRepository_LatestReturnsErrNotFoundWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Episodes().Latest(); err != ErrNotFound {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestEpisodeRepository_Latest(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()
	repo.Create(Episode{ID: "ep-1", StartedAtMs: 1000, EndedAtMs: 1500, PeakSpeed: 0.8, TotalDyPx: 240})
	repo.Create(Episode{ID: "ep-2", StartedAtMs: 2000, EndedAtMs: 2200, PeakSpeed: 0.3, TotalDyPx: 80})

	latest, err := repo.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "ep-2" {
		t.Errorf("Latest().ID = %q, want ep-2", latest.ID)
	}
}

func TestEpisodeLogger_RecordAndDrain(t *testing.T) {
	s := newTestStore(t)
	logger := NewEpisodeLogger(s, nil)
	done := make(chan struct{})
	go func() {
		logger.Run()
		close(done)
	}()

	logger.RecordEpisode(100, 400, 0.6, 120)
	logger.Close()
	<-done // Run only returns once the channel is drained.

	episodes, err := s.Episodes().List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("len(episodes) = %d, want 1", len(episodes))
	}
	if episodes[0].TotalDyPx != 120 {
		t.Errorf("TotalDyPx = %v, want 120", episodes[0].TotalDyPx)
	}
}

func TestEpisodeLogger_DropsWhenBufferFull(t *testing.T) {
	s := newTestStore(t)
	logger := NewEpisodeLogger(s, nil)
	// Do not start Run: the channel fills and RecordEpisode must not block.
	for i := 0; i < EpisodeLoggerBufferSize+5; i++ {
		logger.RecordEpisode(int64(i), int64(i+1), 0, 0)
	}
	if !logger.dropWarned {
		t.Error("expected dropWarned to be set once the buffer overflowed")
	}
}
