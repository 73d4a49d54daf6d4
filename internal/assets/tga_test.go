package assets

import (
	"errors"
	"image/color"
	"testing"
)

func tgaHeader(imageType byte, width, height int, bpp byte, descriptor byte) []byte {
	h := make([]byte, tgaHeaderSize)
	h[2] = imageType
	h[12], h[13] = byte(width), byte(width>>8)
	h[14], h[15] = byte(height), byte(height>>8)
	h[16] = bpp
	h[17] = descriptor
	return h
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// 2x1 bottom-up, BGR order.
	data := append(tgaHeader(tgaTrueColor, 2, 1, 24, 0),
		0, 0, 255, // red
		255, 0, 0, // blue
	)

	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decodeTGA: %v", err)
	}
	if got := img.At(0, 0).(color.RGBA); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel 0: %v", got)
	}
	if got := img.At(1, 0).(color.RGBA); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel 1: %v", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 3x2 top-down, 32 bpp: a run of 4 green pixels then 2 raw pixels.
	data := append(tgaHeader(tgaTrueColorRLE, 3, 2, 32, 0x20),
		0x83, 0, 255, 0, 128,
		0x01, 10, 20, 30, 255, 40, 50, 60, 255,
	)

	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decodeTGA: %v", err)
	}
	if got := img.At(2, 0).(color.RGBA); got != (color.RGBA{0, 255, 0, 128}) {
		t.Errorf("run pixel: %v", got)
	}
	if got := img.At(0, 1).(color.RGBA); got != (color.RGBA{0, 255, 0, 128}) {
		t.Errorf("run pixel wrapping rows: %v", got)
	}
	if got := img.At(2, 1).(color.RGBA); got != (color.RGBA{60, 50, 40, 255}) {
		t.Errorf("raw pixel: %v", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", make([]byte, 10)},
		{"color mapped", func() []byte { h := tgaHeader(tgaTrueColor, 1, 1, 24, 0); h[1] = 1; return h }()},
		{"grayscale", tgaHeader(3, 1, 1, 8, 0)},
		{"16 bit", tgaHeader(tgaTrueColor, 1, 1, 16, 0)},
		{"empty", tgaHeader(tgaTrueColor, 0, 1, 24, 0)},
		{"truncated raw", append(tgaHeader(tgaTrueColor, 2, 2, 24, 0), 1, 2, 3)},
		{"truncated rle", append(tgaHeader(tgaTrueColorRLE, 2, 2, 24, 0), 0x81, 1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeTGA(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := decodeTGA(append(tgaHeader(tgaTrueColor, 2, 2, 24, 0), 1, 2, 3))
	if !errors.Is(err, errTGATruncated) {
		t.Errorf("got %v, want errTGATruncated", err)
	}
}

func TestDecodeImageFallsBackToTGA(t *testing.T) {
	data := append(tgaHeader(tgaTrueColor, 1, 1, 24, 0), 30, 20, 10)

	img, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if got := img.At(0, 0).(color.RGBA); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel: %v", got)
	}
}
