package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
	"github.com/camden-git/mediasysfaces/services"
)

const maxUploadSize = 64 << 20

// ImageQueue schedules the background tasks of a new upload
type ImageQueue interface {
	QueueImage(imageID uint, relPath string)
}

type ImageHandler struct {
	Images      repository.ImageRepositoryInterface
	Thumbnails  repository.ThumbnailRepositoryInterface
	Processor   *media.Processor
	Queue       ImageQueue
	Detector    services.FileDetector
	Suggestions *services.SuggestionService
}

// Upload stores a multipart "image" file and queues its background tasks. it
// returns as soon as the row exists; task progress shows in the status columns.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Could not parse multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Missing 'image' file field")
		return
	}
	defer file.Close()

	if !media.IsRasterImage(header.Filename) {
		WriteAPIError(w, http.StatusBadRequest, "unsupported_type", "Unsupported image type: "+header.Filename)
		return
	}

	relPath, err := h.Processor.SaveOriginal(header.Filename, file)
	if err != nil {
		log.Printf("upload: failed to store %s: %v", header.Filename, err)
		WriteAPIError(w, http.StatusInternalServerError, "storage_error", "Failed to store image")
		return
	}

	image := &models.Image{
		OriginalPath:     relPath,
		OriginalFilename: header.Filename,
		Title:            strings.TrimSpace(r.FormValue("title")),
	}
	if user := currentUser(r); user != nil {
		image.UploadedByID = &user.ID
	}
	if err := h.Images.Create(r.Context(), image); err != nil {
		log.Printf("upload: failed to record %s: %v", relPath, err)
		if delErr := h.Processor.Store().Delete(relPath); delErr != nil {
			log.Printf("upload: could not remove orphaned original %s: %v", relPath, delErr)
		}
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to record image")
		return
	}

	if h.Queue != nil {
		h.Queue.QueueImage(image.ID, image.OriginalPath)
	}
	writeJSON(w, http.StatusCreated, image)
}

func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	images, total, err := h.Images.List(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": images,
		"count":   total,
	})
}

// loadImage fetches the {image_id} row, writing 404/500 itself on failure
func (h *ImageHandler) loadImage(w http.ResponseWriter, r *http.Request) (*models.Image, bool) {
	id, ok := parseIDParam(w, r, "image_id")
	if !ok {
		return nil, false
	}
	image, err := h.Images.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
		} else {
			log.Printf("images: failed to load image %d: %v", id, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to load image")
		}
		return nil, false
	}
	return image, true
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	image, ok := h.loadImage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, image)
}

// DeleteImage removes the row, its tags, its cached thumbnails and the original
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	image, ok := h.loadImage(w, r)
	if !ok {
		return
	}
	store := h.Processor.Store()
	if h.Thumbnails != nil {
		thumbs, err := h.Thumbnails.List(r.Context(), image.ID)
		if err != nil {
			log.Printf("images: failed to list thumbnails of image %d: %v", image.ID, err)
		}
		for _, t := range thumbs {
			if err := store.Delete(t.ThumbnailPath); err != nil {
				log.Printf("images: could not remove thumbnail %s: %v", t.ThumbnailPath, err)
			}
		}
		if err := h.Thumbnails.DeleteForImage(r.Context(), image.ID); err != nil {
			log.Printf("images: failed to clear thumbnail cache of image %d: %v", image.ID, err)
		}
	}
	if err := h.Images.Delete(r.Context(), image.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := store.Delete(image.OriginalPath); err != nil {
		log.Printf("images: could not remove original %s: %v", image.OriginalPath, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetectFaces runs detection on demand. nothing is persisted: tags are created
// when somebody actually tags one of the returned faces.
func (h *ImageHandler) DetectFaces(w http.ResponseWriter, r *http.Request) {
	image, ok := h.loadImage(w, r)
	if !ok {
		return
	}
	fullPath, err := h.Processor.Store().GetFullPath(image.OriginalPath)
	if err != nil {
		log.Printf("detect: bad original path for image %d: %v", image.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Face detection failed")
		return
	}

	outcome := h.Detector.DetectFile(fullPath)
	switch outcome.Status {
	case recognition.DetectionUnreadable:
		WriteAPIError(w, http.StatusUnprocessableEntity, "unreadable_image", "The image could not be decoded")
		return
	case recognition.DetectionNoFaces:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"faces":      []recognition.DetectedFace{},
			"image_id":   image.ID,
			"face_count": 0,
			"message":    "No faces detected in this image",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"faces":      outcome.Faces,
		"image_id":   image.ID,
		"face_count": len(outcome.Faces),
	})
}

func (h *ImageHandler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "image_id")
	if !ok {
		return
	}
	report, err := h.Suggestions.SuggestForImage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]interface{}{
		"image_id":            report.ImageID,
		"suggestions":         report.Suggestions,
		"untagged_face_count": report.UntaggedFaceCount,
	}
	if report.UntaggedFaceCount == 0 {
		resp["message"] = "No untagged faces found in this image"
	}
	writeJSON(w, http.StatusOK, resp)
}
