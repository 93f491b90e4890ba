package resizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"imagetidy/imageprocessor"
	"imagetidy/logging"

	"github.com/disintegration/imaging"

	// imaging decodes JPEG/PNG/GIF/TIFF/BMP; WebP needs explicit registration
	_ "golang.org/x/image/webp"
)

// Options defines the options for a downsizing run
type Options struct {
	InputDir  string
	OutputDir string
	MaxDim    int
	Force     bool
}

// Result reports what a downsizing run did
type Result struct {
	Resized int
	Copied  int
	Skipped int
	Errors  int
}

// Run scans InputDir for images, downsizes any larger than MaxDim in either
// dimension, and writes the results under OutputDir mirroring the input
// layout. Up-to-date outputs are skipped unless Force is set; images already
// within MaxDim are byte-copied rather than re-encoded. Per-file failures are
// logged and processing continues.
func Run(options Options) (Result, error) {
	info, err := os.Stat(options.InputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("input directory does not exist: %s", options.InputDir)
		}
		return Result{}, fmt.Errorf("cannot access input directory %s: %v", options.InputDir, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("input path is not a directory: %s", options.InputDir)
	}

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("cannot create output directory %s: %v", options.OutputDir, err)
	}

	files, err := findImages(options.InputDir)
	if err != nil {
		return Result{}, err
	}

	fmt.Printf("Found %d image files. Starting resizing...\n", len(files))

	var result Result
	for _, path := range files {
		rel, err := filepath.Rel(options.InputDir, path)
		if err != nil {
			logging.LogError("Cannot determine relative path for %s: %v", path, err)
			result.Errors++
			continue
		}
		outPath := filepath.Join(options.OutputDir, rel)

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			logging.LogError("Cannot create directory for %s: %v", outPath, err)
			result.Errors++
			continue
		}

		if !options.Force && upToDate(path, outPath) {
			result.Skipped++
			continue
		}

		switch action, err := resizeFile(path, outPath, options.MaxDim); {
		case err != nil:
			logging.LogError("Error processing %s: %v", path, err)
			fmt.Printf("Error processing %s: %v\n", path, err)
			result.Errors++
		case action == actionCopied:
			result.Copied++
		default:
			result.Resized++
		}
	}

	fmt.Println("Image resizing complete.")
	return result, nil
}

type resizeAction int

const (
	actionResized resizeAction = iota
	actionCopied
)

// findImages collects image files under root in lexical path order
func findImages(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogWarning("Cannot access %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && imageprocessor.IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// upToDate reports whether the output exists and the original has not been
// modified since it was written. The one-second slack absorbs filesystems
// with coarse mtime precision.
func upToDate(origPath, outPath string) bool {
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return false
	}
	origInfo, err := os.Stat(origPath)
	if err != nil {
		return true
	}
	return !origInfo.ModTime().After(outInfo.ModTime().Add(time.Second))
}

// resizeFile downsizes one image to fit within maxDim, or copies it verbatim
// when it is already small enough. PNG stays PNG and GIF stays GIF; every
// other format is re-encoded as JPEG quality 85.
func resizeFile(path, outPath string, maxDim int) (resizeAction, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return actionResized, fmt.Errorf("decode failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		// No upscaling and no pointless re-encode of small images
		if err := copyFile(path, outPath); err != nil {
			return actionCopied, err
		}
		return actionCopied, nil
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	out, err := os.Create(outPath)
	if err != nil {
		return actionResized, fmt.Errorf("cannot create %s: %v", outPath, err)
	}
	defer out.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = imaging.Encode(out, resized, imaging.PNG)
	case ".gif":
		err = imaging.Encode(out, resized, imaging.GIF)
	default:
		err = imaging.Encode(out, resized, imaging.JPEG, imaging.JPEGQuality(85))
	}
	if err != nil {
		return actionResized, fmt.Errorf("encode failed: %v", err)
	}

	return actionResized, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
