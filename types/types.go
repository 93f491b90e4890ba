package types

// ImageInfo holds the metadata stored for one catalogued image
type ImageInfo struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	SourcePrefix string `json:"source_prefix"`
	Format       string `json:"format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int64  `json:"size"`
	ModifiedAt   string `json:"modified_at"`
	CreatedAt    string `json:"created_at"`
	TakenAt      string `json:"taken_at"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	IsPublic     bool   `json:"is_public"`
	AverageHash  string `json:"average_hash"`
	ExactHash    string `json:"exact_hash"`
}

// MetaEdit is one structured edit record for an image's catalogue metadata.
// A batch of edits is validated as a whole before any of them is persisted.
type MetaEdit struct {
	Path        string
	Title       string
	Description string
	IsPublic    bool
	TakenAt     string
}
