package database

import (
	"database/sql"
	"fmt"
	"time"

	"imagetidy/types"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase initializes and returns a catalogue database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		source_prefix TEXT,
		format TEXT,
		width INTEGER,
		height INTEGER,
		size INTEGER,
		modified_at TEXT,
		created_at TEXT,
		updated_at TEXT,
		taken_at TEXT,
		title TEXT,
		description TEXT,
		is_public INTEGER DEFAULT 1,
		average_hash TEXT,
		exact_hash TEXT,
		UNIQUE(path, source_prefix)
	);
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);
	CREATE TABLE IF NOT EXISTS image_tags (
		image_path TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (image_path, tag_id),
		FOREIGN KEY (tag_id) REFERENCES tags(id)
	);
	CREATE INDEX IF NOT EXISTS idx_path ON images(path);
	CREATE INDEX IF NOT EXISTS idx_average_hash ON images(average_hash);
	CREATE INDEX IF NOT EXISTS idx_exact_hash ON images(exact_hash);
	CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag_id);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// CheckImageExists checks if an image already exists in the database and
// returns its stored modification time
func CheckImageExists(db *sql.DB, path string, sourcePrefix string) (bool, string, error) {
	var storedModTime string
	err := db.QueryRow("SELECT modified_at FROM images WHERE path = ? AND source_prefix = ?",
		path, sourcePrefix).Scan(&storedModTime)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("database error for %s: %v", path, err)
	}

	return true, storedModTime, nil
}

// StoreImageInfo inserts or updates the catalogue row for one image. On an
// existing row the upsert refreshes everything derived from the file itself
// and leaves created_at and the user-entered metadata (title, description,
// is_public) alone, so a re-index never clobbers edits.
func StoreImageInfo(db *sql.DB, imageInfo types.ImageInfo) error {
	now := time.Now().Format(time.RFC3339)

	stmt, insertErr := db.Prepare(`
		INSERT INTO images (
			path, source_prefix, format, width, height, size,
			modified_at, created_at, updated_at, taken_at, average_hash, exact_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, source_prefix) DO UPDATE SET
			format = excluded.format,
			width = excluded.width,
			height = excluded.height,
			size = excluded.size,
			modified_at = excluded.modified_at,
			updated_at = excluded.updated_at,
			taken_at = excluded.taken_at,
			average_hash = excluded.average_hash,
			exact_hash = excluded.exact_hash
	`)
	if insertErr != nil {
		return fmt.Errorf("cannot prepare statement for %s: %v", imageInfo.Path, insertErr)
	}
	defer stmt.Close()

	_, err := stmt.Exec(
		imageInfo.Path,
		imageInfo.SourcePrefix,
		imageInfo.Format,
		imageInfo.Width,
		imageInfo.Height,
		imageInfo.Size,
		imageInfo.ModifiedAt,
		now,
		now,
		imageInfo.TakenAt,
		imageInfo.AverageHash,
		imageInfo.ExactHash,
	)

	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %v", imageInfo.Path, err)
	}

	return nil
}

// TagImage associates a tag with an image, creating the tag if needed
func TagImage(db *sql.DB, path string, tagName string) error {
	if tagName == "" {
		return fmt.Errorf("tag name must not be empty")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO tags (name) VALUES (?)", tagName); err != nil {
		return fmt.Errorf("cannot create tag %s: %v", tagName, err)
	}

	var tagID int64
	if err := tx.QueryRow("SELECT id FROM tags WHERE name = ?", tagName).Scan(&tagID); err != nil {
		return fmt.Errorf("cannot look up tag %s: %v", tagName, err)
	}

	if _, err := tx.Exec("INSERT OR IGNORE INTO image_tags (image_path, tag_id) VALUES (?, ?)",
		path, tagID); err != nil {
		return fmt.Errorf("cannot tag %s with %s: %v", path, tagName, err)
	}

	now := time.Now().Format(time.RFC3339)
	if _, err := tx.Exec("UPDATE images SET updated_at = ? WHERE path = ?", now, path); err != nil {
		return fmt.Errorf("cannot touch %s: %v", path, err)
	}

	return tx.Commit()
}

// UntagImage removes a tag association from an image
func UntagImage(db *sql.DB, path string, tagName string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM image_tags
		WHERE image_path = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		path, tagName); err != nil {
		return fmt.Errorf("cannot untag %s from %s: %v", tagName, path, err)
	}

	now := time.Now().Format(time.RFC3339)
	if _, err := tx.Exec("UPDATE images SET updated_at = ? WHERE path = ?", now, path); err != nil {
		return fmt.Errorf("cannot touch %s: %v", path, err)
	}

	return tx.Commit()
}

// ValidateEdits checks a batch of metadata edit records before any of them is
// applied. An invalid record rejects the whole batch.
func ValidateEdits(edits []types.MetaEdit) error {
	for i, edit := range edits {
		if edit.Path == "" {
			return fmt.Errorf("edit %d: path must not be empty", i)
		}
		if edit.TakenAt != "" {
			if _, err := time.Parse(time.RFC3339, edit.TakenAt); err != nil {
				return fmt.Errorf("edit %d (%s): invalid taken_at %q: %v", i, edit.Path, edit.TakenAt, err)
			}
		}
	}
	return nil
}

// ApplyEdits validates the edit records and then applies them in order inside
// one transaction. An edit referencing an unknown image fails the whole batch
// and nothing is persisted.
func ApplyEdits(db *sql.DB, edits []types.MetaEdit) error {
	if err := ValidateEdits(edits); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE images SET title = ?, description = ?, is_public = ?, taken_at = ?, updated_at = ?
		WHERE path = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for _, edit := range edits {
		res, err := stmt.Exec(edit.Title, edit.Description, edit.IsPublic, edit.TakenAt, now, edit.Path)
		if err != nil {
			return fmt.Errorf("cannot update %s: %v", edit.Path, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("no catalogued image at %s", edit.Path)
		}
	}

	return tx.Commit()
}

// Snapshot is an immutable in-memory view of the catalogue. Callers hold a
// snapshot until they explicitly load a new one; there is no background
// refresh.
type Snapshot struct {
	TakenAt     time.Time
	Images      []types.ImageInfo
	TagsByImage map[string][]string
	ImagesByTag map[string][]string
}

// LoadSnapshot builds a fresh snapshot of the catalogue, optionally filtered
// by source prefix. The tag adjacency is materialized in both directions from
// the junction table in a single pass.
func LoadSnapshot(db *sql.DB, sourcePrefix string) (*Snapshot, error) {
	snap := &Snapshot{
		TakenAt:     time.Now(),
		TagsByImage: make(map[string][]string),
		ImagesByTag: make(map[string][]string),
	}

	query := `SELECT id, path, source_prefix, format, width, height, size,
		modified_at, created_at, taken_at, title, description, is_public,
		average_hash, exact_hash FROM images`
	var args []interface{}
	if sourcePrefix != "" {
		query += " WHERE source_prefix = ?"
		args = append(args, sourcePrefix)
	}
	query += " ORDER BY path"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot load images: %v", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var info types.ImageInfo
		var prefix, takenAt, title, description sql.NullString
		if err := rows.Scan(&info.ID, &info.Path, &prefix, &info.Format,
			&info.Width, &info.Height, &info.Size, &info.ModifiedAt,
			&info.CreatedAt, &takenAt, &title, &description, &info.IsPublic,
			&info.AverageHash, &info.ExactHash); err != nil {
			return nil, fmt.Errorf("cannot scan image row: %v", err)
		}
		info.SourcePrefix = prefix.String
		info.TakenAt = takenAt.String
		info.Title = title.String
		info.Description = description.String
		snap.Images = append(snap.Images, info)
		known[info.Path] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := db.Query(`
		SELECT it.image_path, t.name FROM image_tags it
		JOIN tags t ON t.id = it.tag_id
		ORDER BY it.image_path, t.name`)
	if err != nil {
		return nil, fmt.Errorf("cannot load tags: %v", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var path, tag string
		if err := tagRows.Scan(&path, &tag); err != nil {
			return nil, fmt.Errorf("cannot scan tag row: %v", err)
		}
		if !known[path] {
			// Tag rows for images outside the snapshot filter
			continue
		}
		// Both directions are maintained together
		snap.TagsByImage[path] = append(snap.TagsByImage[path], tag)
		snap.ImagesByTag[tag] = append(snap.ImagesByTag[tag], path)
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// ScanStats contains statistics from a scan operation
type ScanStats struct {
	TotalImages  int
	UniqueHashes int
	TaggedImages int
}

// GetScanStats retrieves statistics about catalogued images
func GetScanStats(db *sql.DB, sourcePrefix string) (*ScanStats, error) {
	var stats ScanStats

	var where string
	var args []interface{}
	if sourcePrefix != "" {
		where = " WHERE source_prefix = ?"
		args = append(args, sourcePrefix)
	}

	err := db.QueryRow("SELECT COUNT(*) FROM images"+where, args...).Scan(&stats.TotalImages)
	if err != nil {
		return nil, fmt.Errorf("failed to get total images: %v", err)
	}

	err = db.QueryRow("SELECT COUNT(DISTINCT average_hash) FROM images"+where, args...).Scan(&stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique hashes: %v", err)
	}

	err = db.QueryRow("SELECT COUNT(DISTINCT image_path) FROM image_tags").Scan(&stats.TaggedImages)
	if err != nil {
		return nil, fmt.Errorf("failed to get tagged images: %v", err)
	}

	return &stats, nil
}
