//go:build !gocv

package edges

import "image"

func detect(gray *image.Gray, low, high int) *image.Gray {
	return Canny(gray, low, high)
}
