package handlers

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	maxUploadBytes = 10 << 20 // 10MB
	maxImageWidth  = 800
)

// UploadHandler stores admin-uploaded images as resized JPEGs.
type UploadHandler struct {
	Dir string
	// URLPrefix is where Dir is served from, e.g. "/uploads/".
	URLPrefix string
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "File too large. Max 10MB.")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Image file is required.")
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil || (format != "jpeg" && format != "png") {
		writeMessage(w, http.StatusBadRequest, "Unsupported image format. Only PNG, JPG, JPEG are allowed.")
		return
	}

	// Resize image (max width 800px, preserve aspect ratio)
	if img.Bounds().Dx() > maxImageWidth {
		img = resize.Resize(maxImageWidth, 0, img, resize.Lanczos3)
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		slog.Error("Failed to create upload directory", "dir", h.Dir, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error saving image file.")
		return
	}

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())
	out, err := os.Create(filepath.Join(h.Dir, filename))
	if err != nil {
		slog.Error("Failed to create upload file", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error saving image file.")
		return
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 80}); err != nil {
		slog.Error("Failed to encode upload", "error", err)
		os.Remove(out.Name())
		writeMessage(w, http.StatusInternalServerError, "Error encoding image.")
		return
	}

	slog.Info("Image uploaded", "file", filename)
	writeJSON(w, http.StatusCreated, map[string]string{"url": path.Join(h.URLPrefix, filename)})
}
