package emulator

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/bmp"
)

// DefaultScale is the default pixel size of screenshots.
const DefaultScale = 8

var framePalette = color.Palette{
	color.RGBA{0, 0, 0, 255},
	color.RGBA{0, 255, 0, 255},
}

// Image renders the frame as a two color image, each pixel scale x scale.
func (f Frame) Image(scale int) *image.Paletted {
	if scale < 1 {
		scale = 1
	}

	img := image.NewPaletted(image.Rect(0, 0, f.Width*scale, f.Height*scale), framePalette)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if !f.Pixel(x, y) {
				continue
			}
			for sy := 0; sy < scale; sy++ {
				for sx := 0; sx < scale; sx++ {
					img.SetColorIndex(x*scale+sx, y*scale+sy, 1)
				}
			}
		}
	}
	return img
}

// WriteBMP encodes the frame as a BMP image.
func WriteBMP(w io.Writer, f Frame, scale int) error {
	return bmp.Encode(w, f.Image(scale))
}

// SaveBMP writes the frame to a BMP file at path.
func SaveBMP(path string, f Frame, scale int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating screenshot: %w", err)
	}

	if err := WriteBMP(file, f, scale); err != nil {
		_ = file.Close()
		return fmt.Errorf("encoding screenshot: %w", err)
	}
	return file.Close()
}
