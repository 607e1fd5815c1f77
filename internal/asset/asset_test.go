package asset

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
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

func upload(t *testing.T, h *Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "photo.png", pngBytes(t, 12, 7))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, scene.MediaImage, resp.Kind)
	assert.Equal(t, 12, resp.Width)
	assert.Equal(t, 7, resp.Height)
	assert.True(t, strings.HasPrefix(resp.URL, URLPrefix+"asset_"))
	assert.True(t, strings.HasSuffix(resp.URL, ".png"))

	rc, err := NewDirResolver(h.dir).Open(context.Background(), resp.URL)
	require.NoError(t, err)
	defer rc.Close()
	_, err = png.Decode(rc)
	assert.NoError(t, err)
}

func TestUploadPDF(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "notes.pdf", []byte("%PDF-1.4\n%test\n"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, scene.MediaPDF, resp.Kind)
	assert.Zero(t, resp.Width)
}

func TestUploadModelByExtension(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "chair.glb", []byte("glTF\x02\x00\x00\x00"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, scene.MediaModel, resp.Kind)
	assert.True(t, strings.HasSuffix(resp.URL, ".glb"))
}

func TestUploadRejectsText(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "readme.txt", []byte("just words"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	h := NewHandler(t.TempDir())
	data := pngBytes(t, 4, 4)[:20]
	rec := upload(t, h, "broken.png", data)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		contentType string
		filename    string
		want        scene.MediaKind
	}{
		{"image/webp", "", scene.MediaImage},
		{"video/mp4", "", scene.MediaVideo},
		{"audio/mpeg", "", scene.MediaAudio},
		{"application/pdf", "", scene.MediaPDF},
		{"application/octet-stream", "scan.stl", scene.MediaModel},
		{"", "slides.pdf", scene.MediaPDF},
	}
	for _, tc := range cases {
		got, ok := Classify(tc.contentType, tc.filename)
		require.True(t, ok, tc)
		assert.Equal(t, tc.want, got, tc)
	}
	_, ok := Classify("text/plain; charset=utf-8", "a.txt")
	assert.False(t, ok)
}

func TestDirResolverRejectsEscapes(t *testing.T) {
	d := NewDirResolver(t.TempDir())
	for _, ref := range []string{"/assets/../secret", "/assets/", "/other/x.png", "/assets/.env"} {
		_, err := d.Open(context.Background(), ref)
		assert.Error(t, err, ref)
	}
}

func TestDeleteAsset(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "a.png", pngBytes(t, 1, 1))
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NoError(t, h.Delete(resp.ID))
	assert.Error(t, h.Delete(resp.ID))
	assert.Error(t, h.Delete("not-an-id"))
}

func TestRemoveRoute(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "a.png", pngBytes(t, 1, 1))
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	r := mux.NewRouter()
	r.HandleFunc("/assets/{id}", h.Remove).Methods("DELETE")

	out := httptest.NewRecorder()
	r.ServeHTTP(out, httptest.NewRequest(http.MethodDelete, "/assets/"+resp.ID, nil))
	assert.Equal(t, http.StatusNoContent, out.Code)

	out = httptest.NewRecorder()
	r.ServeHTTP(out, httptest.NewRequest(http.MethodDelete, "/assets/"+resp.ID, nil))
	assert.Equal(t, http.StatusNotFound, out.Code)
}

func TestServeSetsCacheHeaders(t *testing.T) {
	h := NewHandler(t.TempDir())
	rec := upload(t, h, "a.png", pngBytes(t, 1, 1))
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	out := httptest.NewRecorder()
	h.Serve().ServeHTTP(out, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	require.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Header().Get("Cache-Control"), "immutable")
	data, _ := io.ReadAll(out.Body)
	assert.NotEmpty(t, data)
}
