package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ErrNoContent is returned when an image has no non-white, non-transparent
// pixels to crop to. The source file is left untouched.
var ErrNoContent = errors.New("no content found in image")

// DefaultCropMargin is the fraction of the content size padded on each side
const DefaultCropMargin = 0.10

// CropToContent crops the image at path to the bounding box of its non-white,
// non-transparent pixels, expanded by marginFraction of the larger content
// dimension, and overwrites the file in place. The write goes through a
// temporary file in the same directory so a failure at any point leaves the
// original file unmodified.
func CropToContent(path string, marginFraction float64) error {
	img := gocv.IMRead(path, gocv.IMReadUnchanged)
	if img.Empty() {
		img.Close()
		// OpenCV cannot decode GIF; retry with the pure-Go stack
		return cropWithImaging(path, marginFraction)
	}
	defer img.Close()

	// Classification always happens on a 4-channel view; sources without an
	// alpha channel are treated as fully opaque.
	bgra := gocv.NewMat()
	defer bgra.Close()

	switch img.Channels() {
	case 4:
		img.CopyTo(&bgra)
	case 3:
		gocv.CvtColor(img, &bgra, gocv.ColorBGRToBGRA)
	case 1:
		bgr := gocv.NewMat()
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
		gocv.CvtColor(bgr, &bgra, gocv.ColorBGRToBGRA)
		bgr.Close()
	default:
		return fmt.Errorf("unsupported channel count %d: %s", img.Channels(), path)
	}

	box, ok := contentBounds(bgra)
	if !ok {
		return ErrNoContent
	}

	margin := int(math.Round(marginFraction * float64(maxInt(box.Dx(), box.Dy()))))

	rect := image.Rect(box.Min.X-margin, box.Min.Y-margin, box.Max.X+margin, box.Max.Y+margin)
	rect = rect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return ErrNoContent
	}

	// Crop the original mat, not the classification view, so the saved file
	// keeps the source channel layout.
	region := img.Region(rect)
	defer region.Close()

	cropped := region.Clone()
	defer cropped.Close()

	return overwriteImage(path, cropped)
}

// contentBounds finds the minimal rectangle whose rows and columns each
// contain at least one content pixel. A pixel is content iff it is not pure
// white and not fully transparent. Returns false when nothing qualifies.
func contentBounds(bgra gocv.Mat) (image.Rectangle, bool) {
	rows, cols := bgra.Rows(), bgra.Cols()
	rowHas := make([]bool, rows)
	colHas := make([]bool, cols)
	found := false

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := bgra.GetVecbAt(y, x)
			if v[3] == 0 {
				// Fully transparent
				continue
			}
			if v[0] == 255 && v[1] == 255 && v[2] == 255 {
				// Pure white
				continue
			}
			rowHas[y] = true
			colHas[x] = true
			found = true
		}
	}

	if !found {
		return image.Rectangle{}, false
	}

	top, bottom := firstLast(rowHas)
	left, right := firstLast(colHas)

	// Max is exclusive, so the rectangle covers rows top..bottom and columns
	// left..right inclusive.
	return image.Rect(left, top, right+1, bottom+1), true
}

// cropWithImaging performs the same content crop for formats OpenCV cannot
// decode, GIF in particular, entirely through the pure-Go image stack. The
// output is re-encoded in the source format through the same temp-file and
// rename dance as the gocv path.
func cropWithImaging(path string, marginFraction float64) error {
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode image: %s", path)
	}

	// Clone normalizes to NRGBA with bounds anchored at the origin
	nrgba := imaging.Clone(src)

	box, ok := contentBoundsNRGBA(nrgba)
	if !ok {
		return ErrNoContent
	}

	margin := int(math.Round(marginFraction * float64(maxInt(box.Dx(), box.Dy()))))

	rect := image.Rect(box.Min.X-margin, box.Min.Y-margin, box.Max.X+margin, box.Max.Y+margin)
	rect = rect.Intersect(nrgba.Bounds())
	if rect.Empty() {
		return ErrNoContent
	}

	cropped := imaging.Crop(nrgba, rect)

	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("cannot determine output format for %s: %v", path, err)
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".crop_%d_%s", time.Now().UnixNano(), base))

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot create temporary file for %s: %v", path, err)
	}
	if err := imaging.Encode(f, cropped, format, imaging.JPEGQuality(95)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode cropped image: %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cropped image: %s", path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %v", path, err)
	}

	return nil
}

// contentBoundsNRGBA mirrors contentBounds for the pure-Go fallback path
func contentBoundsNRGBA(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	rowHas := make([]bool, b.Dy())
	colHas := make([]bool, b.Dx())
	found := false

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if c.A == 0 {
				continue
			}
			if c.R == 255 && c.G == 255 && c.B == 255 {
				continue
			}
			rowHas[y] = true
			colHas[x] = true
			found = true
		}
	}

	if !found {
		return image.Rectangle{}, false
	}

	top, bottom := firstLast(rowHas)
	left, right := firstLast(colHas)

	return image.Rect(left, top, right+1, bottom+1), true
}

// firstLast returns the indices of the first and last true entries
func firstLast(mask []bool) (int, int) {
	first, last := -1, -1
	for i, v := range mask {
		if v {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

// overwriteImage encodes img to a temporary file next to path, then renames it
// over the original. JPEG and WebP outputs are written at quality 95.
func overwriteImage(path string, img gocv.Mat) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".crop_%d_%s", time.Now().UnixNano(), base))

	var params []int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		params = []int{gocv.IMWriteJpegQuality, 95}
	case ".webp":
		params = []int{gocv.IMWriteWebpQuality, 95}
	}

	var ok bool
	if len(params) > 0 {
		ok = gocv.IMWriteWithParams(tmpPath, img, params)
	} else {
		ok = gocv.IMWrite(tmpPath, img)
	}
	if !ok {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode cropped image: %s", path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %v", path, err)
	}

	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
