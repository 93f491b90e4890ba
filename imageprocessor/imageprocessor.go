package imageprocessor

import (
	"fmt"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// LoadImage loads an image forced to a 3-channel color representation.
// OpenCV has no GIF codec, so anything IMRead cannot decode is retried
// through the pure-Go decoders.
func LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if !img.Empty() {
		return img, nil
	}
	img.Close()

	decoded, err := imaging.Open(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to load image: %s", path)
	}

	mat, err := gocv.ImageToMatRGB(decoded)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image %s: %v", path, err)
	}
	return mat, nil
}
