package imageprocessor

import (
	"crypto/sha256"
	"fmt"
	"image"
	"io"
	"os"

	"gocv.io/x/gocv"
)

// ComputeAverageHash calculates the average-hash fingerprint for the image:
// the image is resized to an 8x8 grid, converted to greyscale, and each cell
// contributes one bit depending on whether it is brighter than the grid mean.
// Always returns a fixed-width hexadecimal string representation.
func ComputeAverageHash(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	// Resize to 8x8
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(img, &resized, image.Point{X: 8, Y: 8}, 0, 0, gocv.InterpolationLinear)

	// Convert to grayscale if not already
	gray := gocv.NewMat()
	defer gray.Close()

	if resized.Channels() != 1 {
		gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)
	} else {
		resized.CopyTo(&gray)
	}

	// Calculate mean pixel value
	var sum uint64
	var count int

	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			pixel := gray.GetUCharAt(y, x)
			sum += uint64(pixel)
			count++
		}
	}

	var mean float64
	if count > 0 {
		mean = float64(sum) / float64(count)
	}

	// Compute binary hash, one bit per cell
	var hashBytes []byte
	var currentByte byte = 0
	var bitCount uint = 0

	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			pixel := gray.GetUCharAt(y, x)

			// Set bit when the cell is brighter than the grid mean
			currentByte = currentByte << 1
			if float64(pixel) > mean {
				currentByte |= 1
			}

			bitCount++

			// When we have 8 bits, add the byte to our slice
			if bitCount == 8 {
				hashBytes = append(hashBytes, currentByte)
				currentByte = 0
				bitCount = 0
			}
		}
	}

	// Handle any remaining bits
	if bitCount > 0 {
		// Pad with zeros on the right
		currentByte = currentByte << (8 - bitCount)
		hashBytes = append(hashBytes, currentByte)
	}

	// Convert bytes to hex string
	hexString := ""
	for _, b := range hashBytes {
		hexString += fmt.Sprintf("%02x", b)
	}

	return hexString, nil
}

// ComputeFileAverageHash loads the file at path and computes its average hash
func ComputeFileAverageHash(path string) (string, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}
	defer img.Close()

	return ComputeAverageHash(img)
}

// ComputeExactHash returns the SHA-256 digest of the raw file bytes as a hex
// string. Two files share an exact hash iff they are byte-identical.
func ComputeExactHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %v", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash %s: %v", path, err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
