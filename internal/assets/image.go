package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Registered decoders for environment map formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes JPEG, PNG, WebP, BMP, TIFF or TGA data.
func DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		if tga, tgaErr := decodeTGA(data); tgaErr == nil {
			return tga, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decoding %s image: empty bounds", format)
	}
	return img, nil
}
