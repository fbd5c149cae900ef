// Package texture decodes glTF images and prepares their mip chains.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/h2non/filetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder (EXT_texture_webp)
)

// ErrNotImage is returned for data that does not look like an image.
var ErrNotImage = errors.New("not an image")

// NoCutoff disables alpha-coverage preservation.
const NoCutoff = 1.0

// Decode decodes encoded image data into RGBA. name is only used in errors.
func Decode(data []byte, name string) (*image.RGBA, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("%s: %w (detected %q)", name, ErrNotImage, kind.MIME.Value)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// MipLevels returns the number of levels in a full chain for w x h.
func MipLevels(w, h int) int {
	n := 1
	for w > 1 || h > 1 {
		w = max(w/2, 1)
		h = max(h/2, 1)
		n++
	}
	return n
}

// MipChain builds every level down to 1x1 with a bilinear filter. When
// cutoff is below NoCutoff the alpha of each level is rescaled so the share
// of texels passing an alpha test against cutoff matches the top level.
func MipChain(top *image.RGBA, cutoff float32) []*image.RGBA {
	b := top.Bounds()
	levels := MipLevels(b.Dx(), b.Dy())
	chain := make([]*image.RGBA, 0, levels)
	chain = append(chain, top)

	coverage := float32(0)
	if cutoff < NoCutoff {
		coverage = alphaCoverage(top, cutoff, 1)
	}

	w, h := b.Dx(), b.Dy()
	for i := 1; i < levels; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		mip := image.NewRGBA(image.Rect(0, 0, w, h))
		prev := chain[i-1]
		draw.BiLinear.Scale(mip, mip.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		if cutoff < NoCutoff {
			scaleAlphaToCoverage(mip, cutoff, coverage)
		}
		chain = append(chain, mip)
	}
	return chain
}

// alphaCoverage is the share of texels whose scaled alpha exceeds cutoff.
func alphaCoverage(img *image.RGBA, cutoff, scale float32) float32 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	pass := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			a := float32(row[x*4+3]) / 255 * scale
			if a > cutoff {
				pass++
			}
		}
	}
	return float32(pass) / float32(total)
}

func scaleAlphaToCoverage(img *image.RGBA, cutoff, want float32) {
	b := img.Bounds()
	texel := 1 / float32(max(b.Dx()*b.Dy(), 1))
	if got := alphaCoverage(img, cutoff, 1); got >= want-texel && got <= want+texel {
		return
	}

	// hi always reaches the wanted coverage.
	lo, hi := float32(0), float32(4)
	for range 12 {
		mid := (lo + hi) / 2
		if alphaCoverage(img, cutoff, mid) < want {
			lo = mid
		} else {
			hi = mid
		}
	}
	scale := hi

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			a := float32(row[x*4+3]) * scale
			row[x*4+3] = uint8(min(a, 255) + 0.5)
		}
	}
}
