package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediasysfaces/media"
)

const assetCacheDuration = 24 * time.Hour

// AssetServer serves files of one store sub directory. it must be mounted on a
// wildcard route; the wildcard is the path inside subDir, e.g.
//
//	r.Get("/api/thumbnails/*", AssetServer(store, cfg.ThumbnailsSubDir))
func AssetServer(store media.Store, subDir string) http.HandlerFunc {
	log.Printf("Serving assets of store sub directory '%s'", subDir)
	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := chi.URLParam(r, "*")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Invalid asset path")
			return
		}
		serveStoreAsset(w, r, store, path.Join(subDir, relativePath))
	}
}

// serveStoreAsset streams a store asset with long-lived cache headers
func serveStoreAsset(w http.ResponseWriter, r *http.Request, store media.Store, relPath string) {
	rc, info, err := store.Get(relPath)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrAssetNotFound):
			http.NotFound(w, r)
		case errors.Is(err, media.ErrInvalidPath):
			log.Printf("SECURITY: rejected asset request '%s' for '%s': %v", r.URL.Path, relPath, err)
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
		default:
			log.Printf("Error opening asset %s: %v", relPath, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
		}
		return
	}
	streamAsset(w, r, rc, info, relPath)
}

func streamAsset(w http.ResponseWriter, r *http.Request, rc io.ReadCloser, info os.FileInfo, relPath string) {
	defer rc.Close()

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(assetCacheDuration.Seconds())))
	w.Header().Set("Expires", time.Now().Add(assetCacheDuration).Format(http.TimeFormat))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("Error streaming asset %s: %v", relPath, err)
	}
}
