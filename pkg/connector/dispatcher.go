package connector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/fm-connector/internal/models"
	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/metrics"
	"github.com/denysvitali/fm-connector/pkg/storage"
)

// Reporter receives successful responses for debug reporting.
type Reporter func(ctx context.Context, operation string, data any)

// Options configures a Dispatcher. Backend, Messages and Configs are
// required; the other services have defaults.
type Options struct {
	Backend      storage.Backend
	Translator   PathTranslator
	Capabilities CapabilityPolicy
	Icons        IconResolver
	Messages     MessageResolver
	Configs      ConfigProvider
	Resizer      *imageproc.Resizer

	// ConnectorURL is the URL the widget reaches the connector at. Preview
	// links point back to it.
	ConnectorURL string

	Logger *logrus.Logger
	Clock  func() time.Time
	Report Reporter
}

// Dispatcher runs connector actions against a storage backend.
type Dispatcher struct {
	backend      storage.Backend
	translator   PathTranslator
	capabilities CapabilityPolicy
	icons        IconResolver
	messages     MessageResolver
	configs      ConfigProvider
	resizer      *imageproc.Resizer
	connectorURL string
	logger       *logrus.Logger
	clock        func() time.Time
	report       Reporter
	tracer       trace.Tracer
}

// New creates a dispatcher from opts.
func New(opts Options) (*Dispatcher, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if opts.Messages == nil {
		return nil, fmt.Errorf("message resolver is required")
	}
	if opts.Configs == nil {
		return nil, fmt.Errorf("config provider is required")
	}

	d := &Dispatcher{
		backend:      opts.Backend,
		translator:   opts.Translator,
		capabilities: opts.Capabilities,
		icons:        opts.Icons,
		messages:     opts.Messages,
		configs:      opts.Configs,
		resizer:      opts.Resizer,
		connectorURL: opts.ConnectorURL,
		logger:       opts.Logger,
		clock:        opts.Clock,
		report:       opts.Report,
		tracer:       otel.Tracer("fm-connector"),
	}
	if d.translator == nil {
		d.translator = PrefixTranslator{}
	}
	if d.capabilities == nil {
		d.capabilities = ConfiguredCapabilities{Configs: opts.Configs}
	}
	if d.icons == nil {
		d.icons = ExtensionIcons{Configs: opts.Configs}
	}
	if d.resizer == nil {
		resizer, err := imageproc.NewResizer(0)
		if err != nil {
			return nil, err
		}
		d.resizer = resizer
	}
	if d.connectorURL == "" {
		d.connectorURL = "/connector"
	}
	if d.logger == nil {
		d.logger = logrus.StandardLogger()
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	return d, nil
}

// ServeHTTP resolves the request into an action, dispatches it and writes
// the result. Protocol errors are answered with an error envelope.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var (
		rc  *RequestContext
		res Result
	)
	params, err := readParams(r)
	locale := d.messages.Negotiate(langCode(r, params), r.Header.Get("Accept-Language"))
	if err == nil {
		var action Action
		action, err = ResolveAction(params["mode"], r.Method)
		rc = NewRequestContext(r, action, params, locale)
	} else {
		rc = NewRequestContext(r, ActionUnknown, nil, locale)
	}

	if err != nil {
		d.logger.Warnf("Rejected connector request %s %s: %v", r.Method, r.URL.RequestURI(), err)
		metrics.RecordAction(ActionUnknown.String(), "error", 0)
		res = d.failure(rc, err)
	} else {
		res = d.Dispatch(rc)
	}

	if err := res.Write(w); err != nil {
		d.logger.Errorf("Failed to write %s response: %v", rc.Action(), err)
	}
}

func langCode(r *http.Request, params map[string]string) string {
	if v := params["langCode"]; v != "" {
		return v
	}
	return r.URL.Query().Get("langCode")
}

// Dispatch runs the action of rc. Errors never escape: they are converted
// into an error envelope of the action's response type.
func (d *Dispatcher) Dispatch(rc *RequestContext) Result {
	ctx, span := d.tracer.Start(rc.Context(), "connector."+rc.Action().String())
	defer span.End()
	span.SetAttributes(attribute.String("connector.action", rc.Action().String()))

	d.logger.WithFields(logrus.Fields{
		"action": rc.Action().String(),
		"params": rc.params,
	}).Debug("Dispatching connector action")

	start := time.Now()
	res, err := d.run(ctx, rc)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		res = d.failure(rc, err)
	}
	metrics.RecordAction(rc.Action().String(), outcome, time.Since(start))
	return res
}

func (d *Dispatcher) run(ctx context.Context, rc *RequestContext) (Result, error) {
	var (
		resp models.Response
		err  error
	)
	switch rc.Action() {
	case ActionFolder:
		resp, err = d.getFolder(ctx, rc)
	case ActionInfo:
		resp, err = d.getInfo(ctx, rc)
	case ActionRename:
		resp, err = d.rename(ctx, rc)
	case ActionDelete:
		resp, err = d.delete(ctx, rc)
	case ActionCreateFolder:
		resp, err = d.createFolder(ctx, rc)
	case ActionUpload:
		resp, err = d.upload(ctx, rc)
	case ActionReplace:
		resp, err = d.replace(ctx, rc)
	case ActionEditFile:
		resp, err = d.editFile(ctx, rc)
	case ActionSaveFile:
		resp, err = d.saveFile(ctx, rc)
	case ActionDownload:
		return d.download(ctx, rc)
	case ActionThumbnail:
		return d.thumbnail(ctx, rc)
	case ActionPreview:
		return d.preview(ctx, rc)
	default:
		return nil, fmt.Errorf("no handler for action %d: %w", rc.Action(), ErrMode)
	}
	if err != nil {
		return nil, err
	}
	if d.report != nil {
		d.report(ctx, "connector_"+rc.Action().String(), resp)
	}
	return &JSONResult{Action: rc.Action(), Body: resp}, nil
}

// failure builds the error envelope for err.
func (d *Dispatcher) failure(rc *RequestContext, err error) Result {
	msg, code := d.mapError(rc, err)
	entry := d.logger.WithFields(logrus.Fields{
		"action": rc.Action().String(),
		"code":   code,
	})
	if code == CodeUnexpected {
		entry.Errorf("Connector action failed: %v", err)
	} else {
		entry.Warnf("Connector action rejected: %v", err)
	}
	action := rc.Action()
	if action.IsBinary() {
		action = ActionUnknown
	}
	return &JSONResult{Action: action, Body: models.NewErrorResponse(msg, code)}
}

func (d *Dispatcher) backendPath(vp VirtualPath, rc *RequestContext) string {
	return d.translator.BackendPath(vp.FullPath, rc)
}

// stat looks up the entry behind a path whose type the client may not know
// and returns the path re-read with the entry's type.
func (d *Dispatcher) stat(ctx context.Context, rc *RequestContext, p string, withSize bool) (VirtualPath, storage.Entry, error) {
	vp := ParseVirtualPath(p, false)
	e, err := d.backend.Stat(ctx, d.backendPath(vp, rc), withSize)
	if err != nil {
		return vp, e, classify(err, vp)
	}
	if e.IsDir() != vp.IsDirectory {
		if !e.IsDir() {
			// a trailing separator must not survive on a regular file
			p = strings.TrimRight(p, Separator)
		}
		vp = ParseVirtualPath(p, e.IsDir())
	}
	return vp, e, nil
}

func (d *Dispatcher) getFolder(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	dir := ParseVirtualPath(rc.Param("path"), true)
	d.logger.Debugf("Listing %s", dir)

	entries, err := d.backend.List(ctx, d.backendPath(dir, rc), rc.BoolParam("getsize"))
	if err != nil {
		return nil, classify(err, dir)
	}

	mode, ok := ParseSortMode(rc.Param("sort"))
	if !ok {
		mode, _ = ParseSortMode(cfg.FileSorting)
	}
	SortEntries(entries, mode)

	folder := models.NewFolderInfo()
	for _, e := range entries {
		folder.Add(d.fileInfo(rc, cfg, dir.Child(e.Name, e.IsDir()), e, true))
	}
	return folder, nil
}

func (d *Dispatcher) getInfo(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	vp, e, err := d.stat(ctx, rc, rc.Param("path"), rc.BoolParam("getsize"))
	if err != nil {
		return nil, err
	}
	return d.fileInfo(rc, cfg, vp, e, false), nil
}

// fileInfo describes e, found at vp. Listings link the thumbnail variant of
// the preview.
func (d *Dispatcher) fileInfo(rc *RequestContext, cfg *config.FilemanagerConfig, vp VirtualPath, e storage.Entry, thumbnail bool) *models.FileInfo {
	info := &models.FileInfo{
		Path:         vp.FullPath,
		Filename:     vp.Name,
		FileType:     vp.Extension,
		Capabilities: d.capabilities.Capabilities(vp, e.Protected, rc),
		Properties: models.Properties{
			Height: e.Height,
			Width:  e.Width,
			Size:   e.Size,
		},
	}
	if vp.IsDirectory {
		info.FileType = "dir"
	}
	if e.Protected {
		info.Protected = 1
	}
	if !e.Modified.IsZero() {
		info.Properties.DateModified = e.Modified.Format(cfg.DateFormat)
		info.Properties.FileMTime = e.Modified.Unix()
	}

	if !vp.IsDirectory && cfg.ShowThumbs && (e.Kind == storage.KindImage || cfg.Images.IsImage(vp.Extension)) {
		info.Preview = d.previewURL(vp, thumbnail)
	} else {
		info.Preview = d.icons.Icon(vp, rc)
	}
	return info
}

func (d *Dispatcher) previewURL(vp VirtualPath, thumbnail bool) string {
	u := d.connectorURL + "?mode=" + ActionPreview.Param() + "&path=" + url.QueryEscape(vp.FullPath)
	if thumbnail {
		u += "&thumbnail=true"
	}
	return u + "&time=" + strconv.FormatInt(d.clock().Unix(), 10)
}

func (d *Dispatcher) rename(ctx context.Context, rc *RequestContext) (models.Response, error) {
	oldParam, newParam := rc.Param("old"), rc.Param("new")
	if oldParam == "" || newParam == "" {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}
	newName := SanitizeName(newParam)

	oldVP, _, err := d.stat(ctx, rc, oldParam, false)
	if err != nil {
		return nil, err
	}
	if oldVP.IsRoot() {
		return nil, newError(KeyNotAllowed)
	}
	newVP := oldVP.Sibling(newName, oldVP.IsDirectory)

	d.logger.Infof("Renaming %s to %s", oldVP, newVP)
	if err := d.backend.Rename(ctx, d.backendPath(oldVP, rc), d.backendPath(newVP, rc)); err != nil {
		switch {
		case errors.Is(err, storage.ErrExist) && oldVP.IsDirectory:
			return nil, wrapError(err, KeyDirectoryAlreadyExists, newName)
		case errors.Is(err, storage.ErrExist):
			return nil, wrapError(err, KeyFileAlreadyExists, newName)
		case errors.Is(err, storage.ErrNotExist), errors.Is(err, storage.ErrPathEscape), errors.Is(err, fs.ErrPermission):
			return nil, classify(err, oldVP)
		case oldVP.IsDirectory:
			return nil, wrapError(err, KeyErrorRenamingDirectory, oldVP.Name, newName)
		default:
			return nil, wrapError(err, KeyErrorRenamingFile, oldVP.Name, newName)
		}
	}

	return &models.RenameResponse{
		OldPath: oldVP.FullPath,
		OldName: oldVP.Name,
		NewPath: newVP.FullPath,
		NewName: newName,
	}, nil
}

func (d *Dispatcher) delete(ctx context.Context, rc *RequestContext) (models.Response, error) {
	p := rc.Param("path")
	if ParseVirtualPath(p, false).IsRoot() {
		return nil, newError(KeyNotAllowed)
	}
	vp, _, err := d.stat(ctx, rc, p, false)
	if err != nil {
		return nil, err
	}

	d.logger.Infof("Deleting %s", vp)
	if err := d.backend.Delete(ctx, d.backendPath(vp, rc)); err != nil {
		return nil, classify(err, vp)
	}
	return &models.DeleteResponse{Path: vp.FullPath}, nil
}

func (d *Dispatcher) createFolder(ctx context.Context, rc *RequestContext) (models.Response, error) {
	parent := ParseVirtualPath(rc.Param("path"), true)
	name := SanitizeName(rc.Param("name"))
	if name == "" {
		return nil, newError(KeyInvalidDirectoryOrFile)
	}

	ok, err := d.backend.Exists(ctx, d.backendPath(parent, rc))
	if err != nil {
		return nil, classify(err, parent)
	}
	if !ok {
		return nil, newError(KeyDirectoryNotExist, parent.FullPath)
	}

	target := parent.Child(name, true)
	if ok, err := d.backend.Exists(ctx, d.backendPath(target, rc)); err != nil {
		return nil, classify(err, target)
	} else if ok {
		return nil, newError(KeyDirectoryAlreadyExists, name)
	}

	d.logger.Infof("Creating folder %s", target)
	if err := d.backend.CreateFolder(ctx, d.backendPath(target, rc)); err != nil {
		if errors.Is(err, storage.ErrExist) {
			return nil, wrapError(err, KeyDirectoryAlreadyExists, name)
		}
		return nil, wrapError(err, KeyUnableToCreateDirectory, name)
	}
	return &models.CreateFolderResponse{Parent: parent.FullPath, Name: name}, nil
}

func (d *Dispatcher) editFile(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	vp := ParseVirtualPath(rc.Param("path"), false)
	if vp.IsDirectory || !cfg.Edit.IsEditable(vp.Extension) {
		return nil, newError(KeyNotAllowed)
	}

	content, err := d.backend.ReadText(ctx, d.backendPath(vp, rc))
	if err != nil {
		if errors.Is(err, storage.ErrNotText) {
			return nil, wrapError(err, KeyInvalidFileType, vp.Name)
		}
		return nil, classify(err, vp)
	}
	return &models.EditFileResponse{Path: vp.FullPath, Content: content}, nil
}

func (d *Dispatcher) saveFile(ctx context.Context, rc *RequestContext) (models.Response, error) {
	cfg := d.configs.Filemanager(rc)
	vp := ParseVirtualPath(rc.Param("path"), false)
	if vp.IsDirectory || !cfg.Edit.IsEditable(vp.Extension) {
		return nil, newError(KeyNotAllowed)
	}

	d.logger.Infof("Saving %s", vp)
	if err := d.backend.WriteText(ctx, d.backendPath(vp, rc), rc.Param("content")); err != nil {
		if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrPathEscape) {
			return nil, classify(err, vp)
		}
		return nil, wrapError(err, KeyErrorSavingFile, vp.Name)
	}
	return &models.SaveFileResponse{Path: vp.FullPath}, nil
}

// classify turns backend sentinel errors into catalogued errors for vp.
// Errors it does not know are returned unchanged.
func classify(err error, vp VirtualPath) error {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, storage.ErrNotExist) && vp.IsDirectory:
		return wrapError(err, KeyDirectoryNotExist, vp.FullPath)
	case errors.Is(err, storage.ErrNotExist):
		return wrapError(err, KeyFileNotExists, vp.FullPath)
	case errors.Is(err, storage.ErrPathEscape),
		errors.Is(err, storage.ErrNotDirectory),
		errors.Is(err, storage.ErrIsDirectory):
		return wrapError(err, KeyInvalidDirectoryOrFile)
	case errors.Is(err, fs.ErrPermission):
		return wrapError(err, KeyNotAllowed)
	default:
		return err
	}
}
