package assets

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types handled by decodeTGA.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

const tgaHeaderSize = 18

var errTGATruncated = errors.New("tga: pixel data truncated")

// decodeTGA decodes uncompressed or RLE true-color TGA data with 24 or 32
// bits per pixel. TGA has no magic number, so it is only tried after the
// registered formats fail.
func decodeTGA(data []byte) (image.Image, error) {
	if len(data) < tgaHeaderSize {
		return nil, errors.New("tga: header too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	switch {
	case colorMapType != 0:
		return nil, errors.New("tga: color-mapped images not supported")
	case imageType != tgaTrueColor && imageType != tgaTrueColorRLE:
		return nil, fmt.Errorf("tga: unsupported image type %d", imageType)
	case bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("tga: unsupported bit depth %d", bpp)
	case width == 0 || height == 0:
		return nil, errors.New("tga: empty image")
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, errTGATruncated
	}
	src := data[offset:]
	bytesPerPixel := bpp / 8

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	put := func(idx int, px []byte) {
		x, y := idx%width, idx/width
		if !topToBottom {
			y = height - 1 - y
		}
		c := color.RGBA{R: px[2], G: px[1], B: px[0], A: 255}
		if bytesPerPixel == 4 {
			c.A = px[3]
		}
		img.SetRGBA(x, y, c)
	}

	count := width * height
	if imageType == tgaTrueColor {
		if len(src) < count*bytesPerPixel {
			return nil, errTGATruncated
		}
		for i := 0; i < count; i++ {
			put(i, src[i*bytesPerPixel:])
		}
		return img, nil
	}

	pos := 0
	for i := 0; i < count; {
		if pos >= len(src) {
			return nil, errTGATruncated
		}
		packet := src[pos]
		pos++
		n := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			// Run-length packet: one pixel repeated n times.
			if pos+bytesPerPixel > len(src) {
				return nil, errTGATruncated
			}
			px := src[pos : pos+bytesPerPixel]
			pos += bytesPerPixel
			for j := 0; j < n && i < count; j++ {
				put(i, px)
				i++
			}
			continue
		}

		for j := 0; j < n && i < count; j++ {
			if pos+bytesPerPixel > len(src) {
				return nil, errTGATruncated
			}
			put(i, src[pos:pos+bytesPerPixel])
			pos += bytesPerPixel
			i++
		}
	}
	return img, nil
}
