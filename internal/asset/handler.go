package asset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/typeid"
)

const maxUploadSize = 32 << 20 // 32MB

// UploadResponse is returned from the upload endpoint. URL is the source
// reference to put on the media placeholder.
type UploadResponse struct {
	ID     string          `json:"id"`
	URL    string          `json:"url"`
	Kind   scene.MediaKind `json:"kind"`
	Width  int             `json:"width,omitempty"`
	Height int             `json:"height,omitempty"`
	Type   string          `json:"type"`
	Name   string          `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir string // directory to store asset files
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 32MB)", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	br := bufio.NewReaderSize(file, 512)
	head, _ := br.Peek(512)
	contentType := sniff(head, header.Filename)
	kind, ok := Classify(contentType, header.Filename)
	if !ok {
		kind, ok = Classify(header.Header.Get("Content-Type"), header.Filename)
	}
	if !ok {
		http.Error(w, "unsupported media type: "+contentType, http.StatusUnsupportedMediaType)
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + extensionFor(contentType, header.Filename)
	resp, err := h.store(br, filename, kind)
	if err != nil {
		slog.Error("store asset", "error", err, "name", header.Filename)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp.ID = assetID
	resp.Type = contentType
	resp.Name = header.Filename

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// store copies src to the asset directory. Images are decoded afterwards to
// validate them and read their size.
func (h *Handler) store(src io.Reader, filename string, kind scene.MediaKind) (UploadResponse, error) {
	path := filepath.Join(h.dir, filename)
	if err := copyFile(path, src); err != nil {
		os.Remove(path)
		return UploadResponse{}, fmt.Errorf("failed to save file: %w", err)
	}

	resp := UploadResponse{URL: URLPrefix + filename, Kind: kind}
	if kind != scene.MediaImage {
		return resp, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("reopen asset: %w", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		os.Remove(path)
		return UploadResponse{}, fmt.Errorf("invalid image: %w", err)
	}
	resp.Width, resp.Height = cfg.Width, cfg.Height
	return resp, nil
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(URLPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Delete removes an asset file from disk, whatever its extension.
func (h *Handler) Delete(assetID string) error {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return err
	}
	matches, _ := filepath.Glob(filepath.Join(h.dir, assetID+".*"))
	if len(matches) == 0 {
		return fmt.Errorf("asset not found: %s", assetID)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}

// Remove handles DELETE /assets/{id}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Delete(id); err != nil {
		slog.Warn("delete asset", "error", err, "asset", id)
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// copyFile copies src reader to a file at dst path.
func copyFile(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}
