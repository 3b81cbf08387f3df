package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/khalidmab/jobpress/internal/model"
)

func openTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAppendAndRecent(t *testing.T) {
	log := openTestLog(t)
	now := time.Now().UTC().Truncate(time.Second)

	transitions := []model.Transition{
		{Identity: "aaa", To: model.StageScraped, At: now},
		{Identity: "aaa", From: model.StageScraped, To: model.StageEnriched, At: now.Add(time.Minute)},
		{Identity: "bbb", To: model.StageFailed, Kind: model.FailureIngestion, Message: "HTTP 404", At: now.Add(2 * time.Minute)},
	}
	for _, tr := range transitions {
		if err := log.Append(tr); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent = %d entries, want 3", len(recent))
	}
	// Most recent first.
	if recent[0].Identity != "bbb" || recent[0].Kind != model.FailureIngestion {
		t.Errorf("recent[0] = %+v", recent[0])
	}
	if recent[2].To != model.StageScraped {
		t.Errorf("recent[2] = %+v", recent[2])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	log := openTestLog(t)
	for i := 0; i < 5; i++ {
		if err := log.Append(model.Transition{Identity: "aaa", To: model.StageScraped, At: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := log.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("recent = %d entries, want 2", len(recent))
	}
}

func TestRecentFor(t *testing.T) {
	log := openTestLog(t)
	now := time.Now().UTC()

	_ = log.Append(model.Transition{Identity: "aaa", To: model.StageScraped, At: now})
	_ = log.Append(model.Transition{Identity: "bbb", To: model.StageScraped, At: now})
	_ = log.Append(model.Transition{Identity: "aaa", From: model.StageScraped, To: model.StageEnriched, At: now})

	got, err := log.RecentFor("aaa", 10)
	if err != nil {
		t.Fatalf("RecentFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	for _, tr := range got {
		if tr.Identity != "aaa" {
			t.Errorf("transition for wrong identity: %+v", tr)
		}
	}
	if got[0].To != model.StageEnriched {
		t.Errorf("newest transition = %+v", got[0])
	}
}

func TestCountSince(t *testing.T) {
	log := openTestLog(t)
	now := time.Now().UTC()

	_ = log.Append(model.Transition{Identity: "a", To: model.StageScraped, At: now.Add(-48 * time.Hour)})
	_ = log.Append(model.Transition{Identity: "b", To: model.StageScraped, At: now.Add(-time.Hour)})
	_ = log.Append(model.Transition{Identity: "c", To: model.StageScraped, At: now})

	n, err := log.CountSince(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestFailureCounts(t *testing.T) {
	log := openTestLog(t)
	now := time.Now().UTC()

	_ = log.Append(model.Transition{Identity: "a", To: model.StageFailed, Kind: model.FailureIngestion, At: now})
	_ = log.Append(model.Transition{Identity: "b", To: model.StageFailed, Kind: model.FailureIngestion, At: now})
	_ = log.Append(model.Transition{Identity: "c", To: model.StageFailed, Kind: model.FailurePublication, At: now})
	_ = log.Append(model.Transition{Identity: "d", To: model.StagePublished, At: now})

	counts, err := log.FailureCounts()
	if err != nil {
		t.Fatalf("FailureCounts: %v", err)
	}
	if counts[model.FailureIngestion] != 2 {
		t.Errorf("ingestion = %d, want 2", counts[model.FailureIngestion])
	}
	if counts[model.FailurePublication] != 1 {
		t.Errorf("publication = %d, want 1", counts[model.FailurePublication])
	}
	if counts[model.FailureExtraction] != 0 {
		t.Errorf("extraction = %d, want 0", counts[model.FailureExtraction])
	}
}
