package database

import (
	"context"
	"testing"

	"ratingo/models"
)

func TestCalendar_UpsertAndPrune(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(113988)
	rec.Snapshot = nil
	out, err := db.Media.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	entries := []models.CalendarEntry{
		{MediaItemID: out.MediaItemID, TmdbID: 113988, Season: 2, Episode: 9, Title: "The After Hours", AirDate: "2026-09-05"},
		{MediaItemID: out.MediaItemID, TmdbID: 113988, Season: 2, Episode: 10, Title: "Cold Harbor", AirDate: "2026-09-12"},
		{MediaItemID: out.MediaItemID, TmdbID: 113988, Season: 2, Episode: 8, Title: "Sweet Vitriol", AirDate: "2026-08-01"},
	}
	if err := db.Calendar.UpsertEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertEntries failed: %v", err)
	}

	// Re-upsert with a changed air date must not duplicate.
	entries[0].AirDate = "2026-09-06"
	if err := db.Calendar.UpsertEntries(ctx, entries[:1]); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}

	upcoming, err := db.Calendar.Upcoming(ctx, "2026-08-31", 10)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming entries, got %d", len(upcoming))
	}
	if upcoming[0].AirDate != "2026-09-06" {
		t.Errorf("expected refreshed air date first, got %q", upcoming[0].AirDate)
	}

	pruned, err := db.Calendar.PruneBefore(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned entry, got %d", pruned)
	}
}

func TestCalendar_UpsertEmptyBatch(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Calendar.UpsertEntries(context.Background(), nil); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
}
