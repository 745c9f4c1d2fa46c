package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/easygo-cv/cvforge/pkg/models"
)

func setup(t *testing.T) (*SQLiteTracker, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tracker_test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, context.Background()
}

func record(callerID, operation, model string, total int, at time.Time) models.UsageRecord {
	return models.UsageRecord{
		RequestID:        "req-" + callerID,
		CallerID:         callerID,
		Operation:        operation,
		Model:            model,
		PromptTokens:     total - 10,
		CompletionTokens: 10,
		TotalTokens:      total,
		CreatedAt:        at,
	}
}

func TestRecordAndTotal(t *testing.T) {
	tr, ctx := setup(t)
	now := time.Now().UTC()

	if err := tr.Record(ctx, record("u1", "cv/optimize", "gpt-4-turbo-preview", 150, now)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record(ctx, record("u1", "cv/suggestions", "gpt-4-turbo-preview", 50, now)); err != nil {
		t.Fatal(err)
	}

	total, err := tr.TotalByCaller(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 200 {
		t.Errorf("expected total 200, got %d", total)
	}
}

func TestTotalRespectsSince(t *testing.T) {
	tr, ctx := setup(t)
	now := time.Now().UTC()

	tr.Record(ctx, record("u1", "cv/optimize", "gpt-4-turbo-preview", 100, now.Add(-2*time.Hour)))
	tr.Record(ctx, record("u1", "cv/optimize", "gpt-4-turbo-preview", 40, now))

	total, err := tr.TotalByCaller(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 40 {
		t.Errorf("expected total 40, got %d", total)
	}
}

func TestTotalForUnknownCallerIsZero(t *testing.T) {
	tr, ctx := setup(t)

	total, err := tr.TotalByCaller(ctx, "nobody", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("expected 0, got %d", total)
	}
}

func TestSummaryGroupsByCallerAndModel(t *testing.T) {
	tr, ctx := setup(t)
	now := time.Now().UTC()

	tr.Record(ctx, record("u1", "cv/optimize", "gpt-4-turbo-preview", 100, now))
	tr.Record(ctx, record("u1", "cv/optimize", "gpt-4-turbo-preview", 100, now))
	tr.Record(ctx, record("u1", "cv/suggestions", "gpt-3.5-turbo", 30, now))
	tr.Record(ctx, record("u2", "cv/optimize", "gpt-4-turbo-preview", 60, now))

	all, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 summary rows, got %d", len(all))
	}
	// Ordered by total tokens descending.
	if all[0].CallerID != "u1" || all[0].Model != "gpt-4-turbo-preview" || all[0].TotalTokens != 200 {
		t.Errorf("unexpected top row: %+v", all[0])
	}

	filtered, err := tr.Summary(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].RequestCount != 1 {
		t.Errorf("unexpected filtered summary: %+v", filtered)
	}
}
