package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"Praetorius/logger"
	"Praetorius/storage"
)

// AssetHandler serves audio and score files straight out of MinIO.
// Paths look like /assets/audio/aubade.mp3 or /assets/scores/aubade.pdf.
func (h *APIHandler) AssetHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/assets/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		http.Error(w, "Invalid asset path", http.StatusBadRequest)
		return
	}

	if storage.GetMinioClient() == nil {
		http.Error(w, "Asset storage not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := storage.OpenAsset(ctx, objectPath)
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", storage.AssetContentType(objectPath))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 缓存一年

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("serving asset from MinIO failed",
			logger.String("object", objectPath), logger.ErrorField(err))
	}
}
