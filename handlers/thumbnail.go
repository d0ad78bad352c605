package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
)

// ServeThumbnail serves a named rendition of an image. a rendition that was
// never generated, or whose file went missing, is rendered with the smart crop
// around the stored face and cached before it is served.
func (h *ImageHandler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	aliasName := chi.URLParam(r, "alias")
	alias, ok := media.LookupAlias(h.Processor.Aliases(), aliasName)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "unknown_alias", "Unknown thumbnail alias: "+aliasName)
		return
	}
	image, ok := h.loadImage(w, r)
	if !ok {
		return
	}

	store := h.Processor.Store()
	info, err := h.Thumbnails.Get(r.Context(), image.ID, alias.Name)
	switch {
	case err == nil:
		rc, fi, getErr := store.Get(info.ThumbnailPath)
		if getErr == nil {
			streamAsset(w, r, rc, fi, info.ThumbnailPath)
			return
		}
		log.Printf("thumbnails: cached %s for image %d is unusable, regenerating: %v", alias.Name, image.ID, getErr)
	case !errors.Is(err, sql.ErrNoRows):
		log.Printf("thumbnails: cache lookup for image %d/%s failed: %v", image.ID, alias.Name, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to look up thumbnail")
		return
	}

	rendition, err := h.renderThumbnail(r, image, alias)
	if err != nil {
		log.Printf("thumbnails: failed to render %s for image %d: %v", alias.Name, image.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "thumbnail_error", "Failed to generate thumbnail")
		return
	}
	serveStoreAsset(w, r, store, rendition.Path)
}

func (h *ImageHandler) renderThumbnail(r *http.Request, image *models.Image, alias media.ThumbnailAlias) (media.Rendition, error) {
	img, err := media.OpenImage(h.Processor.Store(), image.OriginalPath)
	if err != nil {
		return media.Rendition{}, err
	}
	rendition, err := h.Processor.GenerateThumbnail(img, alias, image.FaceCenter(), strconv.FormatUint(uint64(image.ID), 10))
	if err != nil {
		return media.Rendition{}, err
	}
	err = h.Thumbnails.Set(r.Context(), database.ThumbnailInfo{
		ImageID:       image.ID,
		Alias:         rendition.Alias,
		ThumbnailPath: rendition.Path,
		Width:         rendition.Width,
		Height:        rendition.Height,
		GeneratedAt:   time.Now().Unix(),
	})
	if err != nil {
		// the file exists, so it can still be served this once
		log.Printf("thumbnails: failed to cache %s for image %d: %v", alias.Name, image.ID, err)
	}
	return rendition, nil
}

// ListThumbnails reports every cached rendition of an image
func (h *ImageHandler) ListThumbnails(w http.ResponseWriter, r *http.Request) {
	image, ok := h.loadImage(w, r)
	if !ok {
		return
	}
	thumbs, err := h.Thumbnails.List(r.Context(), image.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if thumbs == nil {
		thumbs = []database.ThumbnailInfo{}
	}
	writeJSON(w, http.StatusOK, thumbs)
}
