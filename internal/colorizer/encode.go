package colorizer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG returns the standard base64 text of img's PNG encoding.
func EncodeBase64PNG(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Images returns the result's images keyed by the names clients use.
func (r *Result) Images() map[string]image.Image {
	return map[string]image.Image{
		"original":  r.Original,
		"grayscale": r.Grayscale,
		"edges":     r.Edges,
		"colorized": r.Colorized,
	}
}

// Kinds lists the image names in response order.
var Kinds = []string{"original", "grayscale", "edges", "colorized"}
