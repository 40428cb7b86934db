package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"
	"os"

	"golang.org/x/image/bmp"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// Decode reads a bitmap and, if mask is not nil, applies the mask bitmap as
// its alpha channel.
//
// Mask pixels map to alpha as 255 - min(255, L*85), where L is the pixel's
// luminance, so black mask pixels are opaque.
func Decode(r io.Reader, mask io.Reader) (image.Image, error) {
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("icon: decoding bitmap: %w", err)
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	if mask == nil {
		return out, nil
	}
	m, err := bmp.Decode(mask)
	if err != nil {
		return nil, fmt.Errorf("icon: decoding mask: %w", err)
	}
	if !m.Bounds().Size().Eq(b.Size()) {
		return nil, fmt.Errorf("icon: mask size %v does not match bitmap size %v", m.Bounds().Size(), b.Size())
	}
	mo := m.Bounds().Min.Sub(b.Min)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := int(color.GrayModel.Convert(m.At(x+mo.X, y+mo.Y)).(color.Gray).Y)
			a := 255 - min(255, l*85)
			i := out.PixOffset(x, y)
			out.Pix[i+3] = uint8(a)
		}
	}
	return out, nil
}

// Encode returns the image as a GIF.
//
// Pixels with less than half opacity become the transparent color. Images
// with more distinct colors than a GIF palette holds are mapped onto the
// web-safe palette.
func Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	transparent := color.NRGBA{}
	var pal color.Palette
	seen := make(map[color.NRGBA]int)
	var hasAlpha bool
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := opaque(img.At(x, y))
			if c == transparent {
				hasAlpha = true
				continue
			}
			if _, ok := seen[c]; !ok {
				seen[c] = len(pal)
				pal = append(pal, c)
			}
		}
	}
	if hasAlpha {
		for c, i := range seen {
			seen[c] = i + 1
		}
		pal = append(color.Palette{transparent}, pal...)
	}
	if len(pal) == 0 {
		pal = color.Palette{transparent}
	}
	// The transparent color is never in seen, so it maps to index 0.
	lookup := func(c color.NRGBA) uint8 { return uint8(seen[c]) }
	if len(pal) > 256 {
		pal = append(color.Palette{transparent}, palette.WebSafe...)
		lookup = func(c color.NRGBA) uint8 {
			if c == transparent {
				return 0
			}
			return uint8(pal[1:].Index(c) + 1)
		}
	}

	p := image.NewPaletted(b, pal)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p.SetColorIndex(x, y, lookup(opaque(img.At(x, y))))
		}
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, p, nil); err != nil {
		return nil, fmt.Errorf("icon: encoding: %w", err)
	}
	return buf.Bytes(), nil
}

// Opaque reduces a color to either fully opaque or the zero transparent
// color.
func opaque(c color.Color) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A < 0x80 {
		return color.NRGBA{}
	}
	n.A = 0xff
	return n
}

// Load decodes the bitmap at "path", applies the mask at "maskPath" if it's
// not empty, and returns the encoded icon.
//
// The dimensions recorded are those of the decoded bitmap.
func Load(path, maskPath string, bpp int) (softwareindex.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return softwareindex.Image{}, err
	}
	defer f.Close()
	var mask io.Reader
	if maskPath != "" {
		m, err := os.Open(maskPath)
		if err != nil {
			return softwareindex.Image{}, err
		}
		defer m.Close()
		mask = m
	}
	img, err := Decode(f, mask)
	if err != nil {
		return softwareindex.Image{}, err
	}
	data, err := Encode(img)
	if err != nil {
		return softwareindex.Image{}, err
	}
	sz := img.Bounds().Size()
	return softwareindex.Image{
		Width:  sz.X,
		Height: sz.Y,
		BPP:    bpp,
		Data:   data,
	}, nil
}
