package dedupe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"imagetidy/imageprocessor"
	"imagetidy/logging"
)

// Options defines the options for a duplicate-removal run
type Options struct {
	Root       string
	ExactMatch bool
	KeepNewest bool
	DryRun     bool
	DebugMode  bool
}

// Result reports what a duplicate-removal run did (or, in dry-run mode, what
// it would have done)
type Result struct {
	Groups       int
	FilesKept    int
	FilesRemoved int
}

// Run finds duplicate images under options.Root and removes all but one file
// per duplicate group. The root must exist and be a directory; that is the
// only fatal failure, everything else is logged and skipped.
func Run(options Options) (Result, error) {
	info, err := os.Stat(options.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("directory does not exist: %s", options.Root)
		}
		return Result{}, fmt.Errorf("cannot access directory %s: %v", options.Root, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("path is not a directory: %s", options.Root)
	}

	groups, err := FindDuplicates(options)
	if err != nil {
		return Result{}, err
	}

	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return Result{}, nil
	}

	totalCandidates := 0
	for _, paths := range groups {
		totalCandidates += len(paths) - 1
	}
	fmt.Printf("Found %d groups of duplicates (%d duplicate files)\n", len(groups), totalCandidates)

	kept, removed := RemoveDuplicates(groups, options)
	logging.LogInfo("Dedupe finished: %d groups, kept %d, removed %d", len(groups), kept, removed)

	return Result{
		Groups:       len(groups),
		FilesKept:    kept,
		FilesRemoved: removed,
	}, nil
}

// FindImages recursively collects image files under root in lexical path
// order. Unreadable directory entries are skipped with a warning.
func FindImages(root string) ([]string, error) {
	var images []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogWarning("Cannot access %s: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if imageprocessor.IsImageFile(path) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(images)
	return images, nil
}

// FindDuplicates fingerprints every image under the root and groups files by
// identical fingerprint. Only groups with two or more members are returned.
func FindDuplicates(options Options) (map[string][]string, error) {
	images, err := FindImages(options.Root)
	if err != nil {
		return nil, err
	}

	fmt.Printf("Found %d images to analyze\n", len(images))

	groups := make(map[string][]string)

	for i, path := range images {
		if (i+1)%100 == 0 {
			fmt.Printf("Processed %d/%d images...\n", i+1, len(images))
		}

		fp, err := fingerprint(path, options.ExactMatch)
		if err != nil {
			// Undecodable or unreadable files contribute no fingerprint
			logging.LogWarning("Could not process %s: %v", path, err)
			if options.DebugMode {
				fmt.Printf("Warning: could not process %s: %v\n", path, err)
			}
			continue
		}

		groups[fp] = append(groups[fp], path)
	}

	// Singleton fingerprints are not duplicates
	for fp, paths := range groups {
		if len(paths) < 2 {
			delete(groups, fp)
		}
	}

	return groups, nil
}

// fingerprint computes the grouping fingerprint for one file: a SHA-256
// content digest in exact mode, the perceptual average hash otherwise.
func fingerprint(path string, exact bool) (string, error) {
	if exact {
		return imageprocessor.ComputeExactHash(path)
	}
	return imageprocessor.ComputeFileAverageHash(path)
}

// RemoveDuplicates keeps one representative per group and deletes the rest.
// The survivor is the oldest file by modification time, or the newest when
// options.KeepNewest is set. A failed deletion is logged and does not abort
// the batch or count as removed. Returns (groups kept, files removed).
func RemoveDuplicates(groups map[string][]string, options Options) (int, int) {
	filesKept := 0
	filesRemoved := 0

	// Deterministic group order for stable output
	fingerprints := make([]string, 0, len(groups))
	for fp := range groups {
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)

	for _, fp := range fingerprints {
		paths := sortByModTime(groups[fp], options.KeepNewest)

		keep := paths[0]
		fmt.Printf("\nDuplicate group (hash: %.8s...):\n", fp)
		fmt.Printf("  Keeping: %s\n", keep)
		filesKept++

		for _, path := range paths[1:] {
			if options.DryRun {
				fmt.Printf("  Would remove: %s\n", path)
				filesRemoved++
				continue
			}

			if err := os.Remove(path); err != nil {
				logging.LogError("Failed to remove %s: %v", path, err)
				fmt.Printf("  Failed to remove %s: %v\n", path, err)
				continue
			}

			fmt.Printf("  Removed: %s\n", path)
			logging.DebugLog("Removed duplicate: %s (kept %s)", path, keep)
			filesRemoved++
		}
	}

	return filesKept, filesRemoved
}

// sortByModTime orders paths by filesystem modification time, ascending for
// keep-oldest and descending for keep-newest, so index 0 is the survivor
func sortByModTime(paths []string, newestFirst bool) []string {
	type fileTime struct {
		path    string
		modTime time.Time
	}

	files := make([]fileTime, 0, len(paths))
	for _, path := range paths {
		var mod time.Time
		if info, err := os.Stat(path); err == nil {
			mod = info.ModTime()
		} else {
			logging.LogWarning("Cannot stat %s: %v", path, err)
		}
		files = append(files, fileTime{path: path, modTime: mod})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if newestFirst {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	sorted := make([]string, len(files))
	for i, f := range files {
		sorted[i] = f.path
	}
	return sorted
}
