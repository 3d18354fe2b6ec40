package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catwall.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)

	postID := 42
	scheduled := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	runs := []Run{
		{StartedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), Outcome: OutcomeNoAction, Message: "not yet"},
		{StartedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), Outcome: OutcomePosted, Message: "done",
			PostID: &postID, ScheduledAt: &scheduled},
	}
	for _, r := range runs {
		if err := db.Record(r); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	recent, err := db.Recent(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recent))
	}
	if recent[0].Outcome != OutcomePosted {
		t.Errorf("newest run first, got %q", recent[0].Outcome)
	}
	if recent[0].PostID == nil || *recent[0].PostID != 42 {
		t.Errorf("post id not round-tripped: %v", recent[0].PostID)
	}
	if recent[0].ScheduledAt == nil || !recent[0].ScheduledAt.Equal(scheduled) {
		t.Errorf("schedule not round-tripped: %v", recent[0].ScheduledAt)
	}
	if recent[1].PostID != nil || recent[1].ScheduledAt != nil {
		t.Errorf("no-action run must not carry post fields: %+v", recent[1])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		if err := db.Record(Run{StartedAt: time.Now(), Outcome: OutcomeNoAction}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := db.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Errorf("expected 3 runs, got %d", len(recent))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	outcomes := []string{OutcomePosted, OutcomeNoAction, OutcomeNoAction, OutcomeFailed}
	for i, o := range outcomes {
		r := Run{StartedAt: time.Date(2024, 5, 1, 8+i, 0, 0, 0, time.UTC), Outcome: o}
		if err := db.Record(r); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalRuns != 4 || stats.Posted != 1 || stats.NoAction != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastRun == nil || stats.LastRun.Outcome != OutcomeFailed {
		t.Errorf("expected the failed run last, got %+v", stats.LastRun)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalRuns != 0 || stats.LastRun != nil {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}
