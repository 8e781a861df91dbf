package connector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"

	"github.com/gabriel-vasile/mimetype"

	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/metrics"
)

// sniffLen is the number of leading bytes inspected to detect the content
// type of files with an unknown extension.
const sniffLen = 3072

func (d *Dispatcher) download(ctx context.Context, rc *RequestContext) (Result, error) {
	vp := ParseVirtualPath(rc.Param("path"), false)
	if vp.IsDirectory {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}
	d.logger.Infof("Downloading %s", vp)
	return d.open(ctx, rc, vp, "attachment")
}

func (d *Dispatcher) thumbnail(ctx context.Context, rc *RequestContext) (Result, error) {
	cfg := d.configs.Filemanager(rc)
	vp := ParseVirtualPath(rc.Param("path"), false)
	return d.image(ctx, rc, vp, box(cfg.Images.Thumbnail))
}

// preview serves images bounded to the preview box and any other file
// unchanged. thumbnail=true serves the thumbnail instead.
func (d *Dispatcher) preview(ctx context.Context, rc *RequestContext) (Result, error) {
	if rc.BoolParam("thumbnail") {
		return d.thumbnail(ctx, rc)
	}
	cfg := d.configs.Filemanager(rc)
	vp := ParseVirtualPath(rc.Param("path"), false)
	if vp.IsDirectory {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}
	if cfg.Images.IsImage(vp.Extension) {
		return d.image(ctx, rc, vp, box(cfg.Images.Preview))
	}
	return d.open(ctx, rc, vp, "inline")
}

// open streams the file at vp as is.
func (d *Dispatcher) open(ctx context.Context, rc *RequestContext, vp VirtualPath, disposition string) (Result, error) {
	body, length, err := d.backend.Open(ctx, d.backendPath(vp, rc))
	if err != nil {
		return nil, classify(err, vp)
	}

	ct := imageproc.ContentType(vp.Extension)
	if ct == "application/octet-stream" {
		br := bufio.NewReaderSize(body, sniffLen)
		// a short file yields io.EOF together with everything there is
		head, _ := br.Peek(sniffLen)
		ct = mimetype.Detect(head).String()
		body = readCloser{Reader: br, Closer: body}
	}

	return &StreamResult{
		Body:        body,
		Length:      length,
		ContentType: ct,
		Disposition: mime.FormatMediaType(disposition, map[string]string{"filename": vp.Name}),
	}, nil
}

// image serves the image at vp scaled down into b. Results are cached under
// the backend path, modification time, size and box.
func (d *Dispatcher) image(ctx context.Context, rc *RequestContext, vp VirtualPath, b imageproc.Box) (Result, error) {
	if vp.IsDirectory {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}
	bp := d.backendPath(vp, rc)
	e, err := d.backend.Stat(ctx, bp, false)
	if err != nil {
		return nil, classify(err, vp)
	}
	if e.IsDir() {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}

	key := fmt.Sprintf("%s|%d|%d|%s", bp, e.Modified.UnixNano(), e.Size, b)
	img, ok := d.resizer.Cached(key)
	metrics.RecordImageCache(ok)
	if !ok {
		body, _, err := d.backend.Open(ctx, bp)
		if err != nil {
			return nil, classify(err, vp)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", vp, err)
		}
		img, err = d.resizer.Resize(data, vp.Extension, b)
		if err != nil {
			return nil, wrapError(err, KeyInvalidDirectoryOrFile)
		}
		d.resizer.Store(key, img)
	}

	return &StreamResult{
		Body:        io.NopCloser(bytes.NewReader(img.Data)),
		Length:      int64(len(img.Data)),
		ContentType: img.ContentType,
		Disposition: mime.FormatMediaType("inline", map[string]string{"filename": vp.Name}),
	}, nil
}

func box(dim config.Dimension) imageproc.Box {
	return imageproc.Box{Width: dim.Width, Height: dim.Height}
}

type readCloser struct {
	io.Reader
	io.Closer
}
