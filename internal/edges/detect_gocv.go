//go:build gocv

package edges

import (
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// detect hands the plane to OpenCV when built with -tags gocv. The pure Go
// Canny stays the fallback if the Mat cannot be created.
func detect(gray *image.Gray, low, high int) *image.Gray {
	out, err := CannyCV(gray, low, high)
	if err != nil {
		logrus.Warnf("gocv canny failed, using built-in detector: %v", err)
		return Canny(gray, low, high)
	}
	return out
}

// CannyCV runs cv::Canny with aperture 3 and the L1 gradient norm.
func CannyCV(gray *image.Gray, low, high int) (*image.Gray, error) {
	b := gray.Bounds()
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Canny(src, &dst, float32(low), float32(high))

	img, err := dst.ToImage()
	if err != nil {
		return nil, err
	}
	out, ok := img.(*image.Gray)
	if !ok {
		out = image.NewGray(img.Bounds())
		for y := range b.Dy() {
			for x := range b.Dx() {
				out.Set(x, y, img.At(x, y))
			}
		}
	}
	return out, nil
}
