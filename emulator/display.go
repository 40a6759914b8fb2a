package emulator

const (
	LowResPitch  = 8
	HighResPitch = 16

	// VideoSize holds 128x64 pixels plus 4 extra scan lines at the high-res
	// pitch that absorb scroll overflow.
	VideoSize = HighResPitch*64 + 4*HighResPitch
)

// Display is the bit-packed monochrome frame buffer. Pixel <0,0> is bit 0x80
// of byte 0. Low-res (64x32) and high-res (128x64) share the same buffer;
// only the pitch, the number of bytes per scan line, changes.
type Display struct {
	video [VideoSize]byte
	pitch int
}

// Frame is a read-only copy of the visible part of the display.
type Frame struct {
	Pixels []byte
	Pitch  int
	Width  int
	Height int
}

// Pixel reports whether the pixel at x, y is lit.
func (f Frame) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return false
	}
	return f.Pixels[y*f.Pitch+x>>3]&(0x80>>(x&7)) != 0
}

// HighRes returns true for a 128x64 frame.
func (f Frame) HighRes() bool {
	return f.Pitch == HighResPitch
}

func (d *Display) reset() {
	d.video = [VideoSize]byte{}
	d.pitch = LowResPitch
}

func (d *Display) stride() int {
	if d.pitch == 0 {
		return LowResPitch
	}
	return d.pitch
}

// Width returns the horizontal resolution in pixels.
func (d *Display) Width() int {
	return d.stride() << 3
}

// Height returns the vertical resolution in pixels.
func (d *Display) Height() int {
	return d.stride() << 2
}

// HighRes returns true when the display is in 128x64 mode.
func (d *Display) HighRes() bool {
	return d.stride() == HighResPitch
}

// SetHighRes switches resolution. The buffer is reinterpreted, not cleared.
func (d *Display) SetHighRes(high bool) {
	if high {
		d.pitch = HighResPitch
	} else {
		d.pitch = LowResPitch
	}
}

// Clear turns every pixel off.
func (d *Display) Clear() {
	for i := range d.video {
		d.video[i] = 0
	}
}

// Pixel reports whether the pixel at x, y is lit.
func (d *Display) Pixel(x, y int) bool {
	return d.video[y*d.stride()+x>>3]&(0x80>>(x&7)) != 0
}

func (d *Display) setPixel(x, y int, on bool) {
	i := y*d.stride() + x>>3
	mask := byte(0x80 >> (x & 7))
	if on {
		d.video[i] |= mask
	} else {
		d.video[i] &^= mask
	}
}

// DrawSprite XORs sprite onto the display at x, y, wrapping around both
// edges. Each row is one byte, or two bytes when wide is set (16 pixels).
// It returns true if any lit pixel was turned off.
func (d *Display) DrawSprite(x, y int, sprite []byte, wide bool) bool {
	w, h, pitch := d.Width(), d.Height(), d.stride()

	cols, bpr := 8, 1
	if wide {
		cols, bpr = 16, 2
	}

	x, y = x%w, y%h
	collided := false

	for r := 0; r < len(sprite)/bpr; r++ {
		py := (y + r) % h

		for c := 0; c < cols; c++ {
			if sprite[r*bpr+c>>3]&(0x80>>(c&7)) == 0 {
				continue
			}

			px := (x + c) % w
			i := py*pitch + px>>3
			mask := byte(0x80 >> (px & 7))

			if d.video[i]&mask != 0 {
				collided = true
			}
			d.video[i] ^= mask
		}
	}

	return collided
}

// Scroll shifts the picture down by rows scan lines, or up when rows is
// negative. Lines shifted in are blank.
func (d *Display) Scroll(rows int) {
	pitch := d.stride()
	active := d.Height() * pitch

	n := rows * pitch
	if n < 0 {
		n = -n
	}
	if n >= active {
		d.Clear()
		return
	}

	if rows > 0 {
		// the bottom lines spill into the guard lines and are dropped
		copy(d.video[n:], d.video[:active])
		for i := 0; i < n; i++ {
			d.video[i] = 0
		}
	} else {
		copy(d.video[:], d.video[n:active])
		for i := active - n; i < active; i++ {
			d.video[i] = 0
		}
	}

	// wipe anything past the visible area
	for i := active; i < VideoSize; i++ {
		d.video[i] = 0
	}
}

// ScrollHorizontal shifts the picture right by px pixels, or left when px
// is negative. Columns shifted in are blank.
func (d *Display) ScrollHorizontal(px int) {
	w, h := d.Width(), d.Height()

	for y := 0; y < h; y++ {
		if px > 0 {
			for x := w - 1; x >= 0; x-- {
				d.setPixel(x, y, x-px >= 0 && d.Pixel(x-px, y))
			}
		} else {
			for x := 0; x < w; x++ {
				d.setPixel(x, y, x-px < w && d.Pixel(x-px, y))
			}
		}
	}
}

// Frame returns a copy of the visible buffer along with its geometry.
func (d *Display) Frame() Frame {
	pitch := d.stride()
	pixels := make([]byte, d.Height()*pitch)
	copy(pixels, d.video[:])

	return Frame{
		Pixels: pixels,
		Pitch:  pitch,
		Width:  d.Width(),
		Height: d.Height(),
	}
}
