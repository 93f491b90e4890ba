package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"imagetidy/types"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(filepath.Join(t.TempDir(), "catalogue.db"))
	if err != nil {
		t.Fatalf("InitDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func storeTestImage(t *testing.T, db *sql.DB, path string) {
	t.Helper()
	err := StoreImageInfo(db, types.ImageInfo{
		Path:        path,
		Format:      "png",
		Width:       100,
		Height:      80,
		Size:        1234,
		ModifiedAt:  time.Now().Format(time.RFC3339),
		AverageHash: "00ff00ff00ff00ff",
		ExactHash:   "abc123",
	})
	if err != nil {
		t.Fatalf("StoreImageInfo failed: %v", err)
	}
}

func TestStoreAndCheckImage(t *testing.T) {
	db := newTestDB(t)

	exists, _, err := CheckImageExists(db, "/imgs/a.png", "")
	if err != nil {
		t.Fatalf("CheckImageExists failed: %v", err)
	}
	if exists {
		t.Error("image should not exist before storing")
	}

	storeTestImage(t, db, "/imgs/a.png")

	exists, modTime, err := CheckImageExists(db, "/imgs/a.png", "")
	if err != nil {
		t.Fatalf("CheckImageExists failed: %v", err)
	}
	if !exists {
		t.Error("image should exist after storing")
	}
	if modTime == "" {
		t.Error("stored modification time should be returned")
	}
}

func TestStoreImageInfo_RefreshesModifiedFile(t *testing.T) {
	db := newTestDB(t)

	err := StoreImageInfo(db, types.ImageInfo{
		Path: "/imgs/a.png", Format: "png", Width: 100, Height: 80,
		ModifiedAt:  "2024-01-01T00:00:00Z",
		AverageHash: "aaaaaaaaaaaaaaaa", ExactHash: "e1",
	})
	if err != nil {
		t.Fatalf("initial store failed: %v", err)
	}

	// Metadata entered between scans must survive a re-index
	err = ApplyEdits(db, []types.MetaEdit{
		{Path: "/imgs/a.png", Title: "Morning sketch", IsPublic: true},
	})
	if err != nil {
		t.Fatalf("ApplyEdits failed: %v", err)
	}

	err = StoreImageInfo(db, types.ImageInfo{
		Path: "/imgs/a.png", Format: "png", Width: 200, Height: 160,
		ModifiedAt:  "2025-06-01T00:00:00Z",
		AverageHash: "bbbbbbbbbbbbbbbb", ExactHash: "e2",
	})
	if err != nil {
		t.Fatalf("re-store failed: %v", err)
	}

	snap, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(snap.Images) != 1 {
		t.Fatalf("expected a single row, got %d", len(snap.Images))
	}

	img := snap.Images[0]
	if img.ModifiedAt != "2025-06-01T00:00:00Z" {
		t.Errorf("modified_at was not refreshed: %s", img.ModifiedAt)
	}
	if img.AverageHash != "bbbbbbbbbbbbbbbb" || img.ExactHash != "e2" {
		t.Errorf("hashes were not refreshed: %s / %s", img.AverageHash, img.ExactHash)
	}
	if img.Width != 200 || img.Height != 160 {
		t.Errorf("dimensions were not refreshed: %dx%d", img.Width, img.Height)
	}
	if img.Title != "Morning sketch" || !img.IsPublic {
		t.Errorf("re-index clobbered user metadata: %+v", img)
	}
}

func TestTagAdjacencyBothDirections(t *testing.T) {
	db := newTestDB(t)
	storeTestImage(t, db, "/imgs/a.png")
	storeTestImage(t, db, "/imgs/b.png")

	if err := TagImage(db, "/imgs/a.png", "landscape"); err != nil {
		t.Fatalf("TagImage failed: %v", err)
	}
	if err := TagImage(db, "/imgs/b.png", "landscape"); err != nil {
		t.Fatalf("TagImage failed: %v", err)
	}
	if err := TagImage(db, "/imgs/a.png", "ink"); err != nil {
		t.Fatalf("TagImage failed: %v", err)
	}

	snap, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if got := snap.TagsByImage["/imgs/a.png"]; len(got) != 2 {
		t.Errorf("expected 2 tags on a.png, got %v", got)
	}
	if got := snap.ImagesByTag["landscape"]; len(got) != 2 {
		t.Errorf("expected 2 images tagged landscape, got %v", got)
	}

	// The two directions must agree
	for path, tags := range snap.TagsByImage {
		for _, tag := range tags {
			found := false
			for _, p := range snap.ImagesByTag[tag] {
				if p == path {
					found = true
				}
			}
			if !found {
				t.Errorf("adjacency mismatch: %s has tag %s but the inverse is missing", path, tag)
			}
		}
	}

	if err := UntagImage(db, "/imgs/a.png", "landscape"); err != nil {
		t.Fatalf("UntagImage failed: %v", err)
	}

	snap2, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if got := snap2.ImagesByTag["landscape"]; len(got) != 1 {
		t.Errorf("expected 1 image tagged landscape after untag, got %v", got)
	}

	// The first snapshot is immutable: it still reflects the old state
	if got := snap.ImagesByTag["landscape"]; len(got) != 2 {
		t.Errorf("earlier snapshot must not change, got %v", got)
	}
}

func TestApplyEdits(t *testing.T) {
	db := newTestDB(t)
	storeTestImage(t, db, "/imgs/a.png")

	taken := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	err := ApplyEdits(db, []types.MetaEdit{
		{Path: "/imgs/a.png", Title: "Morning sketch", Description: "ink on paper", IsPublic: true, TakenAt: taken},
	})
	if err != nil {
		t.Fatalf("ApplyEdits failed: %v", err)
	}

	snap, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(snap.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(snap.Images))
	}
	img := snap.Images[0]
	if img.Title != "Morning sketch" || img.TakenAt != taken || !img.IsPublic {
		t.Errorf("edit not applied: %+v", img)
	}
}

func TestApplyEdits_InvalidRecordRejectsBatch(t *testing.T) {
	db := newTestDB(t)
	storeTestImage(t, db, "/imgs/a.png")

	err := ApplyEdits(db, []types.MetaEdit{
		{Path: "/imgs/a.png", Title: "should not persist"},
		{Path: "", Title: "invalid"},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	snap, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if snap.Images[0].Title != "" {
		t.Error("no edit should persist when the batch is invalid")
	}
}

func TestApplyEdits_UnknownImageRollsBack(t *testing.T) {
	db := newTestDB(t)
	storeTestImage(t, db, "/imgs/a.png")

	err := ApplyEdits(db, []types.MetaEdit{
		{Path: "/imgs/a.png", Title: "first"},
		{Path: "/imgs/missing.png", Title: "second"},
	})
	if err == nil {
		t.Fatal("expected error for unknown image")
	}

	snap, err := LoadSnapshot(db, "")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if snap.Images[0].Title != "" {
		t.Error("transaction should roll back the whole batch")
	}
}

func TestSnapshotSourcePrefixFilter(t *testing.T) {
	db := newTestDB(t)

	err := StoreImageInfo(db, types.ImageInfo{
		Path: "/drive1/a.png", SourcePrefix: "drive1",
		ModifiedAt: time.Now().Format(time.RFC3339), AverageHash: "aa", ExactHash: "a1",
	})
	if err != nil {
		t.Fatal(err)
	}
	err = StoreImageInfo(db, types.ImageInfo{
		Path: "/drive2/b.png", SourcePrefix: "drive2",
		ModifiedAt: time.Now().Format(time.RFC3339), AverageHash: "bb", ExactHash: "b2",
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := LoadSnapshot(db, "drive1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(snap.Images) != 1 || snap.Images[0].Path != "/drive1/a.png" {
		t.Errorf("prefix filter not applied: %+v", snap.Images)
	}
}

func TestGetScanStats(t *testing.T) {
	db := newTestDB(t)
	storeTestImage(t, db, "/imgs/a.png")
	storeTestImage(t, db, "/imgs/b.png")
	if err := TagImage(db, "/imgs/a.png", "ink"); err != nil {
		t.Fatal(err)
	}

	stats, err := GetScanStats(db, "")
	if err != nil {
		t.Fatalf("GetScanStats failed: %v", err)
	}
	if stats.TotalImages != 2 {
		t.Errorf("expected 2 images, got %d", stats.TotalImages)
	}
	if stats.UniqueHashes != 1 {
		t.Errorf("expected 1 unique hash, got %d", stats.UniqueHashes)
	}
	if stats.TaggedImages != 1 {
		t.Errorf("expected 1 tagged image, got %d", stats.TaggedImages)
	}
}
