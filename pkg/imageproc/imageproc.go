// Package imageproc sniffs image dimensions and produces bounded previews
// and thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 82

var ErrInvalidImage = errors.New("invalid image")

// Box bounds the dimensions of a generated image.
type Box struct {
	Width  int
	Height int
}

func (b Box) String() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

// Image is an encoded raster together with its content type.
type Image struct {
	Data        []byte
	ContentType string
}

// Dimensions decodes an image just enough to get its size.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, ErrInvalidImage
	}
	return cfg.Width, cfg.Height, nil
}

// Fit returns the size of a w x h image scaled down into box, keeping its
// aspect ratio. Images already inside the box keep their size.
func Fit(w, h int, box Box) (int, int) {
	if box.Width <= 0 || box.Height <= 0 {
		return w, h
	}
	if w <= box.Width && h <= box.Height {
		return w, h
	}
	scale := min(float64(box.Width)/float64(w), float64(box.Height)/float64(h))
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Resizer scales images into a box. It never enlarges an image: data whose
// dimensions already fit is returned unchanged.
type Resizer struct {
	cache *lru.Cache[string, Image]
}

// NewResizer creates a Resizer remembering up to cacheEntries results.
// A non-positive size disables the cache.
func NewResizer(cacheEntries int) (*Resizer, error) {
	r := &Resizer{}
	if cacheEntries > 0 {
		cache, err := lru.New[string, Image](cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create image cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Cached returns a previously stored result.
func (r *Resizer) Cached(key string) (Image, bool) {
	if r.cache == nil {
		return Image{}, false
	}
	return r.cache.Get(key)
}

// Store remembers a result under key.
func (r *Resizer) Store(key string, img Image) {
	if r.cache != nil {
		r.cache.Add(key, img)
	}
}

// Resize bounds the image in data to box. ext is the lower-case extension of
// the source without the dot.
func (r *Resizer) Resize(data []byte, ext string, box Box) (Image, error) {
	w, h, err := Dimensions(bytes.NewReader(data))
	if err != nil {
		return Image{}, err
	}
	nw, nh := Fit(w, h, box)
	if nw == w && nh == h {
		return Image{Data: data, ContentType: ContentType(ext)}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	format := encoderFor(ext)
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(&out, dst, nil)
	case "bmp":
		err = bmp.Encode(&out, dst)
	case "tiff":
		err = tiff.Encode(&out, dst, nil)
	default:
		err = png.Encode(&out, dst)
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return Image{Data: out.Bytes(), ContentType: "image/" + format}, nil
}

// encoderFor picks the output format for a source extension. Sources
// without an encoder (webp) are written as png.
func encoderFor(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "jpeg"
	case "gif":
		return "gif"
	case "bmp":
		return "bmp"
	case "tif", "tiff":
		return "tiff"
	default:
		return "png"
	}
}

// ContentType returns the MIME type for a file extension, falling back to
// application/octet-stream.
func ContentType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
