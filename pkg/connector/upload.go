package connector

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/denysvitali/fm-connector/internal/models"
	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/metrics"
)

// Multipart fields carrying the uploaded file.
const (
	uploadField  = "newfile"
	replaceField = "fileR"
)

// upload stores a new file in the folder named by currentpath.
func (d *Dispatcher) upload(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	current := rc.Param("currentpath")
	folder := ParseVirtualPath(current, true)

	fh, err := rc.File(uploadField)
	if err != nil {
		return nil, wrapError(err, KeyInvalidFileUpload)
	}

	claimed := baseName(claimedName(fh))
	ext := extension(claimed)
	if err := checkImagesOnly(cfg, ext); err != nil {
		return nil, err
	}

	name := SanitizeName(claimed)
	if name == "" || name == "." || name == ".." {
		return nil, newError(KeyInvalidFileUpload)
	}
	if !cfg.Upload.Overwrite {
		if name, err = d.freeName(ctx, rc, cfg, folder, name); err != nil {
			return nil, err
		}
	}

	target := folder.Child(name, false)
	d.logger.Infof("Uploading %s (%s)", target, humanize.IBytes(uint64(max(fh.Size, 0))))
	if err := d.store(ctx, rc, cfg, fh, target, ext); err != nil {
		return nil, err
	}
	return &models.UploadResponse{Path: current, Name: name}, nil
}

// replace overwrites an existing file with the uploaded one.
func (d *Dispatcher) replace(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	target := ParseVirtualPath(rc.Param("newfilepath"), false)
	if target.IsDirectory {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}

	fh, err := rc.File(replaceField)
	if err != nil {
		return nil, wrapError(err, KeyInvalidFileUpload)
	}

	ok, err := d.backend.Exists(ctx, d.backendPath(target, rc))
	if err != nil {
		return nil, classify(err, target)
	}
	if !ok {
		return nil, newError(KeyFileNotExists, target.FullPath)
	}

	if err := checkImagesOnly(cfg, target.Extension); err != nil {
		return nil, err
	}

	d.logger.Infof("Replacing %s", target)
	if err := d.store(ctx, rc, cfg, fh, target, target.Extension); err != nil {
		return nil, err
	}
	return &models.UploadResponse{Path: target.Folder, Name: target.Name}, nil
}

// freeName resolves a collision of name within folder. Without unique names
// a collision is an error; otherwise the first free name_N variant is used.
func (d *Dispatcher) freeName(ctx context.Context, rc *RequestContext, cfg *config.FilemanagerConfig, folder VirtualPath, name string) (string, error) {
	entries, err := d.backend.List(ctx, d.backendPath(folder, rc), false)
	if err != nil {
		return "", classify(err, folder)
	}
	existing := make(map[string]bool, len(entries))
	for _, e := range entries {
		existing[e.Name] = true
	}
	if !existing[name] {
		return name, nil
	}
	if !cfg.Upload.UniqueNames {
		return "", newError(KeyFileAlreadyExists, name)
	}
	return UniqueName(existing, name), nil
}

// store validates the size and content of fh and hands it to the backend.
// The part is closed on every path.
func (d *Dispatcher) store(ctx context.Context, rc *RequestContext, cfg *config.FilemanagerConfig, fh *multipart.FileHeader, target VirtualPath, ext string) (err error) {
	var written int64
	defer func() {
		metrics.RecordUpload(written, err == nil)
	}()

	if limit := cfg.Upload.MaxUploadBytes(); limit > 0 && fh.Size > limit {
		return newError(KeyUploadFilesSmallerThan, humanize.IBytes(uint64(limit)))
	}

	f, err := fh.Open()
	if err != nil {
		return wrapError(err, KeyInvalidFileUpload)
	}
	defer f.Close()

	if cfg.Images.IsImage(ext) {
		if _, _, sniffErr := imageproc.Dimensions(f); sniffErr != nil {
			return wrapError(sniffErr, KeyUploadImagesOnly)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return wrapError(err, KeyInvalidFileUpload)
		}
	}

	if err := d.backend.Upload(ctx, d.backendPath(target, rc), f); err != nil {
		return classify(err, target)
	}
	written = fh.Size
	return nil
}

func checkImagesOnly(cfg *config.FilemanagerConfig, ext string) error {
	if cfg.Upload.ImagesOnly && !cfg.Images.IsImage(ext) {
		return newError(KeyUploadImagesOnly)
	}
	return nil
}

// claimedName returns the file name the client sent, taken from the raw
// Content-Disposition of the part so that a client path is still visible.
func claimedName(fh *multipart.FileHeader) string {
	if cd := fh.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return fh.Filename
}

func extension(name string) string {
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		return strings.ToLower(name[dot+1:])
	}
	return ""
}
