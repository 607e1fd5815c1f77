package asset

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

// modelTypes covers 3D formats browsers do not sniff.
var modelTypes = map[string]string{
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".obj":  "model/obj",
	".stl":  "model/stl",
	".usdz": "model/vnd.usdz+zip",
}

// Classify maps a MIME type, falling back to the file extension, to the
// placeholder kind it becomes on the board.
func Classify(contentType, filename string) (scene.MediaKind, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = ""
	}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.HasPrefix(mt, "image/"):
		return scene.MediaImage, true
	case mt == "application/pdf":
		return scene.MediaPDF, true
	case strings.HasPrefix(mt, "video/"):
		return scene.MediaVideo, true
	case strings.HasPrefix(mt, "audio/"):
		return scene.MediaAudio, true
	case strings.HasPrefix(mt, "model/"):
		return scene.MediaModel, true
	}
	if _, ok := modelTypes[ext]; ok {
		return scene.MediaModel, true
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" && byExt != contentType {
		return Classify(byExt, "")
	}
	return "", false
}

// sniff detects the content type of head, preferring a model type by
// extension since those sniff as octet-stream or text.
func sniff(head []byte, filename string) string {
	if t, ok := modelTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return http.DetectContentType(head)
}

// extensionFor picks the stored file extension.
func extensionFor(contentType, filename string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
