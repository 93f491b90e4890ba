package scanner

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"imagetidy/database"
	"imagetidy/imageprocessor"
	"imagetidy/logging"
	"imagetidy/types"

	"github.com/barasher/go-exiftool"
)

// ScanOptions defines the options for a catalogue indexing run
type ScanOptions struct {
	FolderPath   string
	SourcePrefix string
	ForceRewrite bool
	DebugMode    bool
	DbPath       string
	MaxWorkers   int
}

// ProcessImageResult holds the result of processing an image
type ProcessImageResult struct {
	Path    string
	Success bool
	Skipped bool
	Error   error
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
}

// ScanAndStoreFolder walks a folder and stores image metadata and
// fingerprints in the catalogue database
func ScanAndStoreFolder(db *sql.DB, options ScanOptions) error {
	maxWorkers := options.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 8
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessImageResult, 100)
	semaphore := make(chan struct{}, maxWorkers)

	// Count files before processing
	stats := countFilesToProcess(options)
	PrintStartupInfo(stats, options)

	tracker := NewProgressTracker(stats, resultsChan)

	// One exiftool process for the whole run; it is not goroutine-safe, so
	// extraction is serialized through the extractor's mutex
	extractor := newExifExtractor(options.DebugMode)
	defer extractor.close()

	startTime := time.Now()
	err := walkAndProcessFiles(db, options, extractor, &wg, resultsChan, semaphore)

	wg.Wait()
	close(resultsChan)
	tracker.Stop()

	PrintCompletionStats(tracker, startTime, options)

	return err
}

// countFilesToProcess counts the image files under the folder
func countFilesToProcess(options ScanOptions) FileStats {
	stats := FileStats{}

	if options.DebugMode {
		logging.DebugLog("Starting catalogue index on folder: %s", options.FolderPath)
		logging.DebugLog("Force rewrite: %v, Source prefix: %s", options.ForceRewrite, options.SourcePrefix)
	}

	filepath.Walk(options.FolderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if imageprocessor.IsImageFile(path) {
			stats.totalFiles++
		}
		return nil
	})

	return stats
}

// walkAndProcessFiles traverses the directory and processes each file
func walkAndProcessFiles(db *sql.DB, options ScanOptions, extractor *exifExtractor, wg *sync.WaitGroup, resultsChan chan ProcessImageResult, semaphore chan struct{}) error {
	return filepath.Walk(options.FolderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			if err != nil && options.DebugMode {
				logging.LogError("Error accessing path %s: %v", path, err)
			}
			return nil
		}

		if !imageprocessor.IsImageFile(path) {
			return nil
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resultsChan <- processAndStoreImage(db, p, extractor, options)
		}(path)

		return nil
	})
}

// processAndStoreImage processes a single image and stores it in the database
func processAndStoreImage(db *sql.DB, path string, extractor *exifExtractor, options ScanOptions) ProcessImageResult {
	result := ProcessImageResult{
		Path:    path,
		Success: false,
	}

	// Skip processing if the image already exists and hasn't been modified
	if !options.ForceRewrite {
		if skipResult := checkAndSkipIfUnchanged(db, path, options); skipResult != nil {
			return *skipResult
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Errorf("cannot stat file %s: %v", path, err)
		return result
	}

	img, err := imageprocessor.LoadImage(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to load image %s: %v", path, err)
		return result
	}
	defer img.Close()

	avgHash, err := imageprocessor.ComputeAverageHash(img)
	if err != nil {
		result.Error = fmt.Errorf("cannot compute average hash for %s: %v", path, err)
		return result
	}

	exactHash, err := imageprocessor.ComputeExactHash(path)
	if err != nil {
		result.Error = fmt.Errorf("cannot compute exact hash for %s: %v", path, err)
		return result
	}

	imageInfo := types.ImageInfo{
		Path:         path,
		SourcePrefix: options.SourcePrefix,
		Format:       imageprocessor.GetFileFormat(path),
		Width:        img.Cols(),
		Height:       img.Rows(),
		Size:         fileInfo.Size(),
		ModifiedAt:   fileInfo.ModTime().Format(time.RFC3339),
		TakenAt:      extractor.takenAt(path),
		AverageHash:  avgHash,
		ExactHash:    exactHash,
	}

	if err := database.StoreImageInfo(db, imageInfo); err != nil {
		result.Error = fmt.Errorf("cannot store data for %s: %v", path, err)
		return result
	}

	result.Success = true
	return result
}

// checkAndSkipIfUnchanged checks if an image can be skipped because it hasn't changed
func checkAndSkipIfUnchanged(db *sql.DB, path string, options ScanOptions) *ProcessImageResult {
	exists, storedModTime, err := database.CheckImageExists(db, path, options.SourcePrefix)
	if err != nil {
		return &ProcessImageResult{
			Path:  path,
			Error: fmt.Errorf("database error for %s: %v", path, err),
		}
	}

	if !exists {
		return nil
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return &ProcessImageResult{
			Path:  path,
			Error: fmt.Errorf("cannot stat file %s: %v", path, err),
		}
	}

	storedTime, err := time.Parse(time.RFC3339, storedModTime)
	if err != nil {
		return &ProcessImageResult{
			Path:  path,
			Error: fmt.Errorf("cannot parse stored time for %s: %v", path, err),
		}
	}

	// If file hasn't been modified, skip processing
	if !fileInfo.ModTime().After(storedTime) {
		if options.DebugMode {
			logging.DebugLog("Skipping unchanged image: %s", path)
		}
		return &ProcessImageResult{
			Path:    path,
			Success: true,
			Skipped: true,
		}
	}

	return nil
}

// exifExtractor wraps a shared exiftool process behind a mutex. A nil inner
// handle means exiftool is unavailable; extraction then returns empty values.
type exifExtractor struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

func newExifExtractor(debugMode bool) *exifExtractor {
	et, err := exiftool.NewExiftool()
	if err != nil {
		logging.LogWarning("exiftool unavailable, capture dates will be empty: %v", err)
		if debugMode {
			fmt.Printf("Warning: exiftool unavailable, capture dates will be empty\n")
		}
		return &exifExtractor{}
	}
	return &exifExtractor{et: et}
}

func (e *exifExtractor) close() {
	if e.et != nil {
		e.et.Close()
	}
}

// takenAt returns the image's capture date as RFC3339, or "" when no EXIF
// date can be extracted
func (e *exifExtractor) takenAt(path string) string {
	if e.et == nil {
		return ""
	}

	e.mu.Lock()
	fileInfos := e.et.ExtractMetadata(path)
	e.mu.Unlock()

	if len(fileInfos) == 0 || fileInfos[0].Err != nil {
		return ""
	}

	for _, key := range []string{"DateTimeOriginal", "CreateDate"} {
		raw, err := fileInfos[0].GetString(key)
		if err != nil {
			continue
		}
		// EXIF stores dates as "2006:01:02 15:04:05"
		if t, err := time.Parse("2006:01:02 15:04:05", raw); err == nil {
			return t.Format(time.RFC3339)
		}
	}

	return ""
}
