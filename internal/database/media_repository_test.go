package database

import (
	"context"
	"testing"
	"time"

	"ratingo/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func sampleRecord(tmdbID int64) ReconcileRecord {
	return ReconcileRecord{
		Item: models.MediaItem{
			TmdbID:        tmdbID,
			MediaType:     "series",
			Title:         "Severance",
			Overview:      "An office with a twist.",
			PosterPath:    "/poster.jpg",
			ReleaseDate:   "2022-02-18",
			GenreIDs:      "18,9648",
			Popularity:    812.4,
			ImdbID:        "tt11280740",
			TmdbRating:    floatPtr(8.4),
			TmdbVotes:     intPtr(2100),
			TraktRating:   floatPtr(8.1),
			TraktVotes:    intPtr(5400),
			Rating:        8.4,
			Watchers:      4200,
			TrendingScore: 63,
			RatingoScore:  71.5,
			SeasonCount:   2,
			EpisodeCount:  19,
			ShowStatus:    "Returning Series",
		},
		Ratings: []models.RatingRecord{
			{Source: models.RatingSourceTrakt, Average: 8.1, Votes: 5400},
			{Source: models.RatingSourceTMDB, Average: 8.4, Votes: 2100},
		},
		Buckets: []models.RatingBucket{
			{Source: models.RatingSourceTrakt, Bucket: 10, Votes: 2000},
			{Source: models.RatingSourceTrakt, Bucket: 9, Votes: 1800},
		},
		Providers: []models.WatchProviderEntry{
			{Region: "UA", ProviderID: 350, Name: "Apple TV+", Category: models.ProviderCategoryFlatrate, Rank: 1},
		},
		ContentRatings: []models.ContentRatingEntry{
			{Region: "US", Rating: "TV-MA"},
		},
		Cast: []models.CastEntry{
			{PersonID: 58224, Name: "Adam Scott", Character: "Mark Scout", Order: 0},
		},
		Videos: []models.VideoEntry{
			{Site: "YouTube", Key: "xEQP4VVuyrY", Name: "Official Trailer", Type: "Trailer", Official: true},
		},
		Snapshot:       &SnapshotInput{TraktID: 162803, Watchers: 4200},
		SnapshotWindow: 24 * time.Hour,
	}
}

func TestReconcile_InsertsNewItem(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	out, err := db.Media.Reconcile(ctx, sampleRecord(113988))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !out.Added {
		t.Error("expected Added for a new item")
	}
	if !out.SnapshotInserted {
		t.Error("expected a snapshot on first ingestion")
	}

	item, err := db.Media.GetByTmdbID(ctx, 113988)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected item to be stored")
	}
	if item.Title != "Severance" {
		t.Errorf("expected title Severance, got %q", item.Title)
	}
	if item.TraktRating == nil || *item.TraktRating != 8.1 {
		t.Errorf("expected trakt rating 8.1, got %v", item.TraktRating)
	}
	if item.Watchers != 4200 {
		t.Errorf("expected watchers 4200, got %d", item.Watchers)
	}
}

func TestReconcile_SecondRunUpdatesWithoutDuplicating(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.Media.Reconcile(ctx, sampleRecord(113988))
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	rec := sampleRecord(113988)
	rec.Item.Watchers = 5100
	rec.Item.TrendingScore = 68
	rec.Snapshot.Watchers = 5100

	second, err := db.Media.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if second.Added {
		t.Error("second run must update, not add")
	}
	if second.MediaItemID != first.MediaItemID {
		t.Errorf("expected same row id, got %d and %d", first.MediaItemID, second.MediaItemID)
	}
	if second.SnapshotInserted {
		t.Error("second run inside the snapshot window must not insert another snapshot")
	}

	item, err := db.Media.GetByTmdbID(ctx, 113988)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if item.Watchers != 5100 {
		t.Errorf("expected watchers refreshed to 5100, got %d", item.Watchers)
	}

	n, err := db.Media.SnapshotCount(ctx, first.MediaItemID)
	if err != nil {
		t.Fatalf("SnapshotCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one snapshot, got %d", n)
	}
}

func TestReconcile_KeepsValuesWhenSourceSilent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(100)
	rec.Item.ImdbRating = floatPtr(8.7)
	rec.Item.ImdbVotes = intPtr(600000)
	if _, err := db.Media.Reconcile(ctx, rec); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	// Next pass the OMDb side returned nothing.
	rec2 := sampleRecord(100)
	rec2.Item.ImdbRating = nil
	rec2.Item.ImdbVotes = nil
	rec2.Item.Overview = ""
	if _, err := db.Media.Reconcile(ctx, rec2); err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	item, err := db.Media.GetByTmdbID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if item.ImdbRating == nil || *item.ImdbRating != 8.7 {
		t.Errorf("expected imdb rating preserved, got %v", item.ImdbRating)
	}
	if item.Overview != "An office with a twist." {
		t.Errorf("expected overview preserved, got %q", item.Overview)
	}
}

func TestReconcile_RelatedCreatesStubs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(200)
	rec.Related = []RelatedTarget{
		{TmdbID: 300, MediaType: "series", Title: "Dark", Source: "trakt", Rank: 1},
		{TmdbID: 200, MediaType: "series", Title: "Self", Source: "trakt", Rank: 2}, // self link, dropped
		{TmdbID: 0, MediaType: "series", Title: "No id", Source: "trakt", Rank: 3},  // unresolvable, dropped
	}
	if _, err := db.Media.Reconcile(ctx, rec); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	stub, err := db.Media.GetByTmdbID(ctx, 300)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if stub == nil {
		t.Fatal("expected stub row for related target")
	}
	if !stub.Stub {
		t.Error("expected related target to be a stub")
	}

	// Stubs never show up in catalog listings.
	items, err := db.Media.ListTrending(ctx, "series", 10)
	if err != nil {
		t.Fatalf("ListTrending failed: %v", err)
	}
	for _, it := range items {
		if it.TmdbID == 300 {
			t.Error("stub leaked into trending list")
		}
	}
}

func TestReconcile_StubPromotedOnIngestion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Media.EnsureStub(ctx, 400, "series", "The Bear"); err != nil {
		t.Fatalf("EnsureStub failed: %v", err)
	}

	rec := sampleRecord(400)
	rec.Item.Title = "The Bear"
	out, err := db.Media.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out.Added {
		t.Error("promoting a stub is an update, not an add")
	}

	item, err := db.Media.GetByTmdbID(ctx, 400)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if item.Stub {
		t.Error("expected stub flag cleared after full ingestion")
	}
}

func TestRecentSnapshots_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	out, err := db.Media.Reconcile(ctx, sampleRecord(500))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Insert older points directly to simulate history.
	conn := db.Connection()
	base := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		_, err := conn.Exec(
			`INSERT INTO watcher_snapshots (media_item_id, trakt_id, watchers, taken_at) VALUES (?, ?, ?, ?)`,
			out.MediaItemID, 162803, 1000*i, base.AddDate(0, 0, -i))
		if err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}

	snaps, err := db.Media.RecentSnapshots(ctx, out.MediaItemID, 6)
	if err != nil {
		t.Fatalf("RecentSnapshots failed: %v", err)
	}
	if len(snaps) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].TakenAt.After(snaps[i-1].TakenAt) {
			t.Fatal("expected snapshots ordered newest first")
		}
	}
}

func TestBackfillQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(600)
	rec.Item.ImdbRating = nil
	rec.Item.ImdbVotes = nil
	out, err := db.Media.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	missing, err := db.Media.ItemsMissingOmdb(ctx, "series", 10)
	if err != nil {
		t.Fatalf("ItemsMissingOmdb failed: %v", err)
	}
	if len(missing) != 1 || missing[0].TmdbID != 600 {
		t.Fatalf("expected tmdb 600 in omdb backfill list, got %+v", missing)
	}

	if err := db.Media.UpdateExternalRatings(ctx, out.MediaItemID, floatPtr(8.7), intPtr(612000), intPtr(97), intPtr(89)); err != nil {
		t.Fatalf("UpdateExternalRatings failed: %v", err)
	}

	missing, err = db.Media.ItemsMissingOmdb(ctx, "series", 10)
	if err != nil {
		t.Fatalf("ItemsMissingOmdb failed: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected empty backfill list after update, got %d items", len(missing))
	}

	item, err := db.Media.GetByTmdbID(ctx, 600)
	if err != nil {
		t.Fatalf("GetByTmdbID failed: %v", err)
	}
	if item.RtScore == nil || *item.RtScore != 97 {
		t.Errorf("expected rt score 97, got %v", item.RtScore)
	}
}

func TestItemsMissingMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := sampleRecord(700)
	rec.Item.Overview = ""
	rec.Item.PosterPath = ""
	out, err := db.Media.Reconcile(ctx, rec)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	missing, err := db.Media.ItemsMissingMetadata(ctx, "series", 10)
	if err != nil {
		t.Fatalf("ItemsMissingMetadata failed: %v", err)
	}
	if len(missing) != 1 {
		t.Fatalf("expected 1 item missing metadata, got %d", len(missing))
	}

	if err := db.Media.UpdateMetadata(ctx, out.MediaItemID, "Filled in later.", "/p.jpg", "", ""); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	missing, err = db.Media.ItemsMissingMetadata(ctx, "series", 10)
	if err != nil {
		t.Fatalf("ItemsMissingMetadata failed: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no items missing metadata, got %d", len(missing))
	}
}

func TestListTrending_OrderAndLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scores := []int{40, 90, 70}
	for i, s := range scores {
		rec := sampleRecord(int64(800 + i))
		rec.Item.TrendingScore = s
		rec.Snapshot = nil
		if _, err := db.Media.Reconcile(ctx, rec); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
	}

	items, err := db.Media.ListTrending(ctx, "series", 2)
	if err != nil {
		t.Fatalf("ListTrending failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].TrendingScore != 90 || items[1].TrendingScore != 70 {
		t.Errorf("expected scores [90 70], got [%d %d]", items[0].TrendingScore, items[1].TrendingScore)
	}
}
