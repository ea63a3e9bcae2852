package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/infra/storage"
)

func TestSaveAndGetRun(t *testing.T) {
	repo := NewRunRepo()
	ctx := context.Background()

	summary := &domain.Summary{
		RunID:   "run-1",
		Folder:  "inbox",
		Mode:    domain.DeleteModeSoft,
		Matched: 10,
		Deleted: 8,
		Failed: []domain.FailedMessage{
			{ID: "m1", StatusCode: 404, Reason: "HTTP 404"},
		},
		Waves:    2,
		Started:  time.Now().Add(-time.Minute),
		Finished: time.Now(),
	}
	if err := repo.SaveRun(ctx, summary); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rec, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Deleted != 8 || rec.Failed != 1 || rec.Mode != "soft" {
		t.Fatalf("record = %+v", rec)
	}

	failures, err := repo.ListFailures(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(failures) != 1 || failures[0].ID != "m1" {
		t.Fatalf("failures = %+v", failures)
	}
}

func TestGetRunNotFound(t *testing.T) {
	repo := NewRunRepo()
	_, err := repo.GetRun(context.Background(), "nope")
	if !errors.Is(err, storage.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := NewRunRepo()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		err := repo.SaveRun(ctx, &domain.Summary{
			RunID:   id,
			Mode:    domain.DeleteModeSoft,
			Started: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	recs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(recs) != 2 || recs[0].RunID != "new" || recs[1].RunID != "mid" {
		t.Fatalf("recs = %v, want [new mid]", []string{recs[0].RunID, recs[1].RunID})
	}
}
