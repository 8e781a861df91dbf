package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/i18n"
	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/storage/local"
)

var testNow = time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

type fixture struct {
	t    *testing.T
	root string
	cfg  *config.FilemanagerConfig
	d    *Dispatcher
}

func newFixture(t *testing.T, mutate ...func(*config.FilemanagerConfig)) *fixture {
	cfg := config.Default().Filemanager
	for _, m := range mutate {
		m(&cfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	backend, err := local.New(local.Config{
		RootPath:        t.TempDir(),
		ImageExtensions: cfg.Images.Extensions,
	}, logger)
	require.NoError(t, err)

	catalog, err := i18n.New("en")
	require.NoError(t, err)

	resizer, err := imageproc.NewResizer(16)
	require.NoError(t, err)

	d, err := New(Options{
		Backend:      backend,
		Messages:     catalog,
		Configs:      StaticConfig{Config: &cfg},
		Resizer:      resizer,
		ConnectorURL: "/connector",
		Logger:       logger,
		Clock:        func() time.Time { return testNow },
	})
	require.NoError(t, err)

	return &fixture{t: t, root: backend.Root(), cfg: &cfg, d: d}
}

func (f *fixture) write(rel string, content []byte) string {
	abs := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(f.t, os.WriteFile(abs, content, 0644))
	return abs
}

func (f *fixture) mkdir(rel string) {
	require.NoError(f.t, os.MkdirAll(filepath.Join(f.root, filepath.FromSlash(rel)), 0755))
}

func (f *fixture) read(rel string) string {
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) get(params url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/connector?"+params.Encode(), nil)
	rr := httptest.NewRecorder()
	f.d.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postForm(params url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/connector", strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.d.ServeHTTP(rr, req)
	return rr
}

// postFile sends a multipart request with fields and one file part.
func (f *fixture) postFile(fields map[string]string, field, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(f.t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/connector", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	f.d.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, data []byte) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return out
}

// unwrapTextarea returns the JSON inside an upload response.
func unwrapTextarea(t *testing.T, rr *httptest.ResponseRecorder) []byte {
	body := rr.Body.String()
	require.True(t, strings.HasPrefix(body, "<textarea>"), "body: %s", body)
	require.True(t, strings.HasSuffix(body, "</textarea>"), "body: %s", body)
	return []byte(strings.TrimSuffix(strings.TrimPrefix(body, "<textarea>"), "</textarea>"))
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(t *testing.T, data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	return keys
}

func pngOf(t *testing.T, w, h int) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func assertError(t *testing.T, body map[string]any, message string) {
	t.Helper()
	assert.Equal(t, float64(CodeDefault), body["Code"])
	assert.Equal(t, message, body["Error"])
}

func TestGetInfoImage(t *testing.T) {
	f := newFixture(t)
	data := pngOf(t, 110, 70)
	require.Less(t, len(data), 2250)
	// trailing bytes after the image end are ignored by decoders
	data = append(data, make([]byte, 2250-len(data))...)
	abs := f.write("images/pic01.png", data)
	require.NoError(t, os.Chtimes(abs, testNow, testNow))

	rr := f.get(url.Values{"mode": {"getinfo"}, "path": {"/images/pic01.png"}, "getsize": {"true"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	raw := rr.Body.String()
	assert.Contains(t, raw, `"Code":0`)
	assert.Contains(t, raw, `"Error":""`)
	assert.Contains(t, raw, `"File Type":"png"`)
	assert.Contains(t, raw, `"Filename":"pic01.png"`)
	assert.Contains(t, raw, `"Path":"\/images\/pic01.png"`)
	assert.NotContains(t, strings.ReplaceAll(raw, `\/`, ""), "/")

	body := decode(t, rr.Body.Bytes())
	props := body["Properties"].(map[string]any)
	assert.Equal(t, float64(110), props["Width"])
	assert.Equal(t, float64(70), props["Height"])
	assert.Equal(t, float64(2250), props["Size"])
	assert.Equal(t, float64(testNow.Unix()), props["filemtime"])
	assert.Equal(t, testNow.Local().Format(f.cfg.DateFormat), props["Date Modified"])
	assert.Equal(t, float64(0), body["Protected"])
	assert.Equal(t, []any{"select", "delete", "rename", "download"}, body["Capabilities"])
	assert.Equal(t, "/connector?mode=preview&path=%2Fimages%2Fpic01.png&time=1715941800", body["Preview"])
}

func TestGetInfoDirectoryAndIcons(t *testing.T) {
	f := newFixture(t)
	f.mkdir("docs")
	f.write("docs/report.pdf", []byte("%PDF-1.4"))
	f.write("docs/data.unknownext", []byte("x"))

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/docs"}}).Body.Bytes())
	assert.Equal(t, "/docs/", body["Path"])
	assert.Equal(t, "dir", body["File Type"])
	assert.Equal(t, "images/fileicons/_Open.png", body["Preview"])
	assert.Equal(t, []any{"select", "delete", "rename"}, body["Capabilities"])

	body = decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/docs/report.pdf"}}).Body.Bytes())
	assert.Equal(t, "images/fileicons/pdf.png", body["Preview"])

	body = decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/docs/data.unknownext"}}).Body.Bytes())
	assert.Equal(t, "images/fileicons/default.png", body["Preview"])
}

func TestGetInfoRoot(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/", body["Path"])
	assert.Equal(t, "", body["Filename"])
	assert.Equal(t, "dir", body["File Type"])
	assert.Equal(t, []any{"select"}, body["Capabilities"])
}

// A file addressed with a trailing separator is still reported as a file.
func TestFileWithTrailingSeparator(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", []byte("x"))

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/a.txt/"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/a.txt", body["Path"])
	assert.Equal(t, "a.txt", body["Filename"])
	assert.Equal(t, "txt", body["File Type"])
	assert.Equal(t, "images/fileicons/txt.png", body["Preview"])

	body = decode(t, f.get(url.Values{"mode": {"rename"}, "old": {"/a.txt/"}, "new": {"b.txt"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/a.txt", body["Old Path"])
	assert.Equal(t, "a.txt", body["Old Name"])
	assert.Equal(t, "/b.txt", body["New Path"])
	assert.Equal(t, "x", f.read("b.txt"))

	body = decode(t, f.get(url.Values{"mode": {"delete"}, "path": {"/b.txt/"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/b.txt", body["Path"])
	assert.NoFileExists(t, filepath.Join(f.root, "b.txt"))
}

func TestGetInfoProtected(t *testing.T) {
	f := newFixture(t)
	abs := f.write("readonly.txt", []byte("x"))
	require.NoError(t, os.Chmod(abs, 0444))

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/readonly.txt"}}).Body.Bytes())
	assert.Equal(t, float64(1), body["Protected"])
	assert.Equal(t, []any{"select", "download"}, body["Capabilities"])
}

func TestGetInfoMissing(t *testing.T) {
	f := newFixture(t)
	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/nope.txt"}}).Body.Bytes())
	assertError(t, body, "File /nope.txt does not exist.")
}

func TestGetFolder(t *testing.T) {
	f := newFixture(t)
	f.mkdir("folder")
	f.write("pic01.png", pngOf(t, 10, 10))

	rr := f.get(url.Values{"mode": {"getfolder"}, "path": {"/"}, "getsize": {"true"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"/pic01.png", "/folder/"}, objectKeys(t, rr.Body.Bytes()))

	body := decode(t, rr.Body.Bytes())
	dir := body["/folder/"].(map[string]any)
	assert.Equal(t, "dir", dir["File Type"])
	assert.Equal(t, "folder", dir["Filename"])
	pic := body["/pic01.png"].(map[string]any)
	assert.Equal(t, "/connector?mode=preview&path=%2Fpic01.png&thumbnail=true&time=1715941800", pic["Preview"])
	assert.Equal(t, float64(10), pic["Properties"].(map[string]any)["Width"])

	rr = f.get(url.Values{"mode": {"getfolder"}, "path": {"/"}, "sort": {"NAME_DESC"}})
	assert.Equal(t, []string{"/folder/", "/pic01.png"}, objectKeys(t, rr.Body.Bytes()))
}

func TestGetFolderConfiguredSorting(t *testing.T) {
	f := newFixture(t, func(c *config.FilemanagerConfig) { c.FileSorting = "TYPE_ASC" })
	f.mkdir("b")
	f.mkdir("a")
	f.write("z.txt", nil)

	rr := f.get(url.Values{"mode": {"getfolder"}, "path": {"/"}})
	assert.Equal(t, []string{"/b/", "/a/", "/z.txt"}, objectKeys(t, rr.Body.Bytes()))
}

func TestGetFolderMissing(t *testing.T) {
	f := newFixture(t)
	body := decode(t, f.get(url.Values{"mode": {"getfolder"}, "path": {"/missing"}}).Body.Bytes())
	assertError(t, body, "Directory /missing/ does not exist.")
}

func TestRenameFile(t *testing.T) {
	f := newFixture(t)
	f.write("docs/a.txt", []byte("hello"))

	rr := f.get(url.Values{"mode": {"rename"}, "old": {"/docs/a.txt"}, "new": {"b|c.txt"}})
	body := decode(t, rr.Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/docs/a.txt", body["Old Path"])
	assert.Equal(t, "a.txt", body["Old Name"])
	assert.Equal(t, "/docs/b_c.txt", body["New Path"])
	assert.Equal(t, "b_c.txt", body["New Name"])
	assert.Equal(t, "hello", f.read("docs/b_c.txt"))
}

func TestRenameDirectory(t *testing.T) {
	f := newFixture(t)
	f.mkdir("docs/inner")

	body := decode(t, f.get(url.Values{"mode": {"rename"}, "old": {"/docs"}, "new": {"papers"}}).Body.Bytes())
	assert.Equal(t, "/docs/", body["Old Path"])
	assert.Equal(t, "docs", body["Old Name"])
	assert.Equal(t, "/papers/", body["New Path"])
	assert.DirExists(t, filepath.Join(f.root, "papers", "inner"))
}

func TestRenameErrors(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", nil)
	f.write("b.txt", nil)

	body := decode(t, f.get(url.Values{"mode": {"rename"}, "old": {"/a.txt"}, "new": {"b.txt"}}).Body.Bytes())
	assertError(t, body, "File b.txt already exists.")

	body = decode(t, f.get(url.Values{"mode": {"rename"}, "old": {"/gone.txt"}, "new": {"c.txt"}}).Body.Bytes())
	assertError(t, body, "File /gone.txt does not exist.")

	body = decode(t, f.get(url.Values{"mode": {"rename"}, "old": {"/a.txt"}}).Body.Bytes())
	assertError(t, body, "Invalid directory or file.")
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.write("docs/a.txt", nil)
	f.write("b.txt", nil)

	body := decode(t, f.get(url.Values{"mode": {"delete"}, "path": {"/docs"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/docs/", body["Path"])
	assert.NoDirExists(t, filepath.Join(f.root, "docs"))

	body = decode(t, f.get(url.Values{"mode": {"delete"}, "path": {"/b.txt"}}).Body.Bytes())
	assert.Equal(t, "/b.txt", body["Path"])
	assert.NoFileExists(t, filepath.Join(f.root, "b.txt"))

	body = decode(t, f.get(url.Values{"mode": {"delete"}, "path": {"/b.txt"}}).Body.Bytes())
	assertError(t, body, "File /b.txt does not exist.")

	body = decode(t, f.get(url.Values{"mode": {"delete"}, "path": {"/"}}).Body.Bytes())
	assertError(t, body, "You are not allowed to perform this action.")
}

func TestCreateFolder(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.get(url.Values{"mode": {"addfolder"}, "path": {"/"}, "name": {"new:dir"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/", body["Parent"])
	assert.Equal(t, "new_dir", body["Name"])
	assert.DirExists(t, filepath.Join(f.root, "new_dir"))

	body = decode(t, f.get(url.Values{"mode": {"addfolder"}, "path": {"/"}, "name": {"new_dir"}}).Body.Bytes())
	assertError(t, body, "Directory new_dir already exists.")

	body = decode(t, f.get(url.Values{"mode": {"addfolder"}, "path": {"/missing"}, "name": {"x"}}).Body.Bytes())
	assertError(t, body, "Directory /missing/ does not exist.")
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	f.mkdir("uploads")

	rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/uploads/"}, "newfile", "name.ext", []byte("payload"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	inner := unwrapTextarea(t, rr)
	assert.Contains(t, string(inner), `"Path":"\/uploads\/"`)
	body := decode(t, inner)
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "name.ext", body["Name"])
	assert.Equal(t, "payload", f.read("uploads/name.ext"))
}

func TestUploadCollision(t *testing.T) {
	f := newFixture(t)
	f.write("name.ext", []byte("old"))

	rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "name.ext", []byte("new"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assertError(t, decode(t, unwrapTextarea(t, rr)), "File name.ext already exists.")
	assert.Equal(t, "old", f.read("name.ext"))
}

func TestUploadUniqueNames(t *testing.T) {
	f := newFixture(t, func(c *config.FilemanagerConfig) { c.Upload.UniqueNames = true })
	f.write("name.ext", []byte("old"))
	f.write("name_1.ext", []byte("old"))

	rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "name.ext", []byte("new"))
	body := decode(t, unwrapTextarea(t, rr))
	assert.Equal(t, "name_2.ext", body["Name"])
	assert.Equal(t, "new", f.read("name_2.ext"))
}

func TestUploadOverwrite(t *testing.T) {
	f := newFixture(t, func(c *config.FilemanagerConfig) { c.Upload.Overwrite = true })
	f.write("name.ext", []byte("old"))

	rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "name.ext", []byte("new"))
	body := decode(t, unwrapTextarea(t, rr))
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "new", f.read("name.ext"))
}

func TestUploadStripsClientPath(t *testing.T) {
	f := newFixture(t)

	rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "dir/sub/re|port.txt", []byte("x"))
	body := decode(t, unwrapTextarea(t, rr))
	assert.Equal(t, "re_port.txt", body["Name"])
	assert.FileExists(t, filepath.Join(f.root, "re_port.txt"))
}

func TestUploadValidation(t *testing.T) {
	t.Run("size limit", func(t *testing.T) {
		f := newFixture(t, func(c *config.FilemanagerConfig) { c.Upload.FileSizeLimit = 1 })
		rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "big.bin", make([]byte, 1<<20+1))
		assertError(t, decode(t, unwrapTextarea(t, rr)), "Please upload only files smaller than 1.0 MiB.")
		assert.NoFileExists(t, filepath.Join(f.root, "big.bin"))
	})

	t.Run("images only", func(t *testing.T) {
		f := newFixture(t, func(c *config.FilemanagerConfig) { c.Upload.ImagesOnly = true })
		rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "notes.txt", []byte("x"))
		assertError(t, decode(t, unwrapTextarea(t, rr)), "Please upload only images, no other file types are supported.")

		rr = f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "ok.png", pngOf(t, 4, 4))
		assert.Equal(t, float64(CodeOK), decode(t, unwrapTextarea(t, rr))["Code"])
	})

	t.Run("fake image", func(t *testing.T) {
		f := newFixture(t)
		rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "newfile", "fake.png", []byte("not an image"))
		assertError(t, decode(t, unwrapTextarea(t, rr)), "Please upload only images, no other file types are supported.")
		assert.NoFileExists(t, filepath.Join(f.root, "fake.png"))
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/"}, "other", "a.txt", []byte("x"))
		assertError(t, decode(t, unwrapTextarea(t, rr)), "Invalid file upload.")
	})

	t.Run("missing folder", func(t *testing.T) {
		f := newFixture(t)
		rr := f.postFile(map[string]string{"mode": "add", "currentpath": "/nowhere/"}, "newfile", "a.txt", []byte("x"))
		assertError(t, decode(t, unwrapTextarea(t, rr)), "Directory /nowhere/ does not exist.")
	})
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	f.write("docs/a.txt", []byte("old"))

	rr := f.postFile(map[string]string{"mode": "replace", "newfilepath": "/docs/a.txt"}, "fileR", "whatever.txt", []byte("new"))
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := decode(t, unwrapTextarea(t, rr))
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/docs/", body["Path"])
	assert.Equal(t, "a.txt", body["Name"])
	assert.Equal(t, "new", f.read("docs/a.txt"))

	rr = f.postFile(map[string]string{"mode": "replace", "newfilepath": "/docs/b.txt"}, "fileR", "b.txt", []byte("new"))
	assertError(t, decode(t, unwrapTextarea(t, rr)), "File /docs/b.txt does not exist.")
}

func TestDownload(t *testing.T) {
	f := newFixture(t)
	f.write("docs/a.txt", []byte("hello"))
	f.write("docs/blob", []byte("plain words"))

	rr := f.get(url.Values{"mode": {"download"}, "path": {"/docs/a.txt"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())
	assert.Equal(t, "attachment; filename=a.txt", rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "5", rr.Header().Get("Content-Length"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	rr = f.get(url.Values{"mode": {"download"}, "path": {"/docs/blob"}})
	assert.Equal(t, "plain words", rr.Body.String())
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	rr = f.get(url.Values{"mode": {"download"}, "path": {"/docs/none.txt"}})
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assertError(t, decode(t, rr.Body.Bytes()), "File /docs/none.txt does not exist.")
}

func TestThumbnailAndPreview(t *testing.T) {
	f := newFixture(t)
	f.write("big.png", pngOf(t, 2000, 1000))
	small := pngOf(t, 110, 70)
	f.write("small.png", small)
	f.write("notes.txt", []byte("text"))

	dims := func(rr *httptest.ResponseRecorder) (int, int) {
		require.Equal(t, http.StatusOK, rr.Code)
		w, h, err := imageproc.Dimensions(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err, "body: %s", rr.Body.String())
		return w, h
	}

	w, h := dims(f.get(url.Values{"mode": {"thumbnail"}, "path": {"/big.png"}}))
	assert.Equal(t, []int{64, 32}, []int{w, h})

	w, h = dims(f.get(url.Values{"mode": {"preview"}, "path": {"/big.png"}}))
	assert.Equal(t, []int{800, 400}, []int{w, h})

	w, h = dims(f.get(url.Values{"mode": {"preview"}, "path": {"/big.png"}, "thumbnail": {"true"}}))
	assert.Equal(t, []int{64, 32}, []int{w, h})

	// images inside the box are served unchanged
	rr := f.get(url.Values{"mode": {"preview"}, "path": {"/small.png"}})
	assert.Equal(t, small, rr.Body.Bytes())
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "inline; filename=small.png", rr.Header().Get("Content-Disposition"))

	rr = f.get(url.Values{"mode": {"preview"}, "path": {"/notes.txt"}})
	assert.Equal(t, "text", rr.Body.String())
	assert.Equal(t, "inline; filename=notes.txt", rr.Header().Get("Content-Disposition"))

	rr = f.get(url.Values{"mode": {"thumbnail"}, "path": {"/notes.txt"}})
	assertError(t, decode(t, rr.Body.Bytes()), "Invalid directory or file.")
}

func TestEditAndSaveFile(t *testing.T) {
	f := newFixture(t)
	f.write("notes.txt", []byte("hello"))
	f.write("fake.txt", pngOf(t, 2, 2))
	f.write("tool.exe", []byte("MZ"))

	body := decode(t, f.get(url.Values{"mode": {"editfile"}, "path": {"/notes.txt"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/notes.txt", body["Path"])
	assert.Equal(t, "hello", body["Content"])

	body = decode(t, f.postForm(url.Values{"mode": {"savefile"}, "path": {"/notes.txt"}, "content": {"bye"}}).Body.Bytes())
	assert.Equal(t, float64(CodeOK), body["Code"])
	assert.Equal(t, "/notes.txt", body["Path"])
	assert.Equal(t, "bye", f.read("notes.txt"))

	body = decode(t, f.get(url.Values{"mode": {"editfile"}, "path": {"/fake.txt"}}).Body.Bytes())
	assertError(t, body, "File fake.txt is not a text file.")

	body = decode(t, f.get(url.Values{"mode": {"editfile"}, "path": {"/tool.exe"}}).Body.Bytes())
	assertError(t, body, "You are not allowed to perform this action.")

	body = decode(t, f.postForm(url.Values{"mode": {"savefile"}, "path": {"/gone.txt"}, "content": {"x"}}).Body.Bytes())
	assertError(t, body, "File /gone.txt does not exist.")
}

func TestEditDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.FilemanagerConfig) { c.Edit.Enabled = false })
	f.write("notes.txt", []byte("hello"))

	body := decode(t, f.get(url.Values{"mode": {"editfile"}, "path": {"/notes.txt"}}).Body.Bytes())
	assertError(t, body, "You are not allowed to perform this action.")
}

func TestModeErrors(t *testing.T) {
	f := newFixture(t)

	for _, rr := range []*httptest.ResponseRecorder{
		f.get(url.Values{}),
		f.get(url.Values{"mode": {"explode"}}),
		f.get(url.Values{"mode": {"add"}}),
		f.postForm(url.Values{"mode": {"download"}}),
	} {
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
		assertError(t, decode(t, rr.Body.Bytes()), "Mode error.")
	}
}

func TestLocalizedErrors(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/x.txt"}, "langCode": {"de"}}).Body.Bytes())
	assertError(t, body, "Die Datei /x.txt existiert nicht.")

	req := httptest.NewRequest(http.MethodGet, "/connector?mode=nothing", nil)
	req.Header.Set("Accept-Language", "de-CH, en;q=0.5")
	rr := httptest.NewRecorder()
	f.d.ServeHTTP(rr, req)
	assertError(t, decode(t, rr.Body.Bytes()), "Modus-Fehler.")
}

func TestPrefixTranslator(t *testing.T) {
	f := newFixture(t)
	f.write("tenant/a.txt", []byte("scoped"))
	f.d.translator = PrefixTranslator{Prefix: "tenant"}

	body := decode(t, f.get(url.Values{"mode": {"getinfo"}, "path": {"/a.txt"}}).Body.Bytes())
	assert.Equal(t, "/a.txt", body["Path"])
	assert.Equal(t, float64(6), body["Properties"].(map[string]any)["Size"])

	assert.Equal(t, "/tenant/dir/", PrefixTranslator{Prefix: "tenant"}.BackendPath("/dir/", nil))
	assert.Equal(t, "/dir/", PrefixTranslator{}.BackendPath("/dir/", nil))
}

func TestReporter(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", nil)

	var operations []string
	f.d.report = func(_ context.Context, operation string, _ any) {
		operations = append(operations, operation)
	}
	f.get(url.Values{"mode": {"getinfo"}, "path": {"/a.txt"}})
	f.get(url.Values{"mode": {"getinfo"}, "path": {"/missing.txt"}})
	assert.Equal(t, []string{"connector_getinfo"}, operations)
}
