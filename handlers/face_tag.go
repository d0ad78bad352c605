package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/realtime"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
	"github.com/camden-git/mediasysfaces/services"
)

type FaceTagHandler struct {
	Tags *services.FaceTagService
	Hub  *realtime.Hub
}

type boxPayload struct {
	X      *float64 `json:"x" validate:"required,min=0,max=1"`
	Y      *float64 `json:"y" validate:"required,min=0,max=1"`
	Width  *float64 `json:"width" validate:"required,gt=0,max=1"`
	Height *float64 `json:"height" validate:"required,gt=0,max=1"`
}

func (b boxPayload) box() recognition.Box {
	return recognition.Box{X: *b.X, Y: *b.Y, Width: *b.Width, Height: *b.Height}
}

type createTagRequest struct {
	boxPayload
	PersonID        *uint     `json:"person_id" validate:"omitempty,gt=0"`
	PersonName      string    `json:"person_name" validate:"max=255"`
	Encoding        []float64 `json:"encoding"`
	RequireEncoding bool      `json:"require_encoding"`
}

type updateTagRequest struct {
	boxPayload
	PersonID *uint `json:"person_id" validate:"omitempty,gt=0"`
}

type applySuggestionRequest struct {
	FaceTagID  uint    `json:"face_tag_id" validate:"required"`
	PersonID   uint    `json:"person_id" validate:"required"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
}

type bulkApproveRequest struct {
	TagIDs []uint `json:"tag_ids" validate:"required,min=1,dive,gt=0"`
}

// faceTagResponse adds the derived fields clients show next to a tag
type faceTagResponse struct {
	models.FaceTag
	PersonName  string `json:"person_name"`
	HasEncoding bool   `json:"has_encoding"`
}

func toFaceTagResponse(t *models.FaceTag) faceTagResponse {
	return faceTagResponse{FaceTag: *t, PersonName: t.PersonName(), HasEncoding: t.HasEncoding()}
}

func toFaceTagResponses(tags []models.FaceTag) []faceTagResponse {
	out := make([]faceTagResponse, 0, len(tags))
	for i := range tags {
		out = append(out, toFaceTagResponse(&tags[i]))
	}
	return out
}

// ListForImage returns the tags of an image the viewer may see
func (h *FaceTagHandler) ListForImage(w http.ResponseWriter, r *http.Request) {
	imageID, ok := parseIDParam(w, r, "image_id")
	if !ok {
		return
	}
	tags, err := h.Tags.ListForImage(r.Context(), currentUser(r), imageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFaceTagResponses(tags))
}

func (h *FaceTagHandler) Create(w http.ResponseWriter, r *http.Request) {
	imageID, ok := parseIDParam(w, r, "image_id")
	if !ok {
		return
	}
	var req createTagRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tag, err := h.Tags.CreateManual(r.Context(), currentUser(r), imageID, services.CreateTagInput{
		Box:             req.box(),
		PersonID:        req.PersonID,
		PersonName:      req.PersonName,
		Encoding:        req.Encoding,
		RequireEncoding: req.RequireEncoding,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.Hub.TagEvent(realtime.EventFaceTagCreated, tag.ImageID, tag.ID, string(tag.Status))
	writeJSON(w, http.StatusCreated, toFaceTagResponse(tag))
}

func (h *FaceTagHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "tag_id")
	if !ok {
		return
	}
	tag, err := h.Tags.Get(r.Context(), currentUser(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFaceTagResponse(tag))
}

func (h *FaceTagHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "tag_id")
	if !ok {
		return
	}
	var req updateTagRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tag, err := h.Tags.UpdateTag(r.Context(), currentUser(r), id, services.UpdateTagInput{
		Box:      req.box(),
		PersonID: req.PersonID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFaceTagResponse(tag))
}

func (h *FaceTagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "tag_id")
	if !ok {
		return
	}
	if err := h.Tags.DeleteTag(r.Context(), currentUser(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplySuggestion assigns a suggested person to a pending face. a reviewer
// still has to approve it.
func (h *FaceTagHandler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	var req applySuggestionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tag, err := h.Tags.ApplySuggestion(r.Context(), currentUser(r), services.ApplySuggestionInput{
		FaceTagID:  req.FaceTagID,
		PersonID:   req.PersonID,
		Confidence: req.Confidence,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Auto-tag applied successfully",
		"face_tag_id": tag.ID,
		"person":      tag.PersonName(),
		"status":      tag.Status,
	})
}

func (h *FaceTagHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, pageSize = repository.NormalizePage(page, pageSize)

	tags, total, err := h.Tags.ListPending(r.Context(), currentUser(r), page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":   toFaceTagResponses(tags),
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"has_next":  int64(page*pageSize) < total,
	})
}

func (h *FaceTagHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.FaceTagApproved)
}

func (h *FaceTagHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.FaceTagRejected)
}

func (h *FaceTagHandler) review(w http.ResponseWriter, r *http.Request, to models.FaceTagStatus) {
	id, ok := parseIDParam(w, r, "tag_id")
	if !ok {
		return
	}
	var (
		tag *models.FaceTag
		err error
	)
	if to == models.FaceTagApproved {
		tag, err = h.Tags.Approve(r.Context(), currentUser(r), id)
	} else {
		tag, err = h.Tags.Reject(r.Context(), currentUser(r), id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.Hub.TagEvent(realtime.EventFaceTagReview, tag.ImageID, tag.ID, string(tag.Status))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Face tag %s successfully", tag.Status),
		"tag_id":  tag.ID,
		"status":  tag.Status,
	})
}

func (h *FaceTagHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkApproveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.Tags.BulkApprove(r.Context(), currentUser(r), req.TagIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if result.Skipped == nil {
		result.Skipped = []uint{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         fmt.Sprintf("Successfully approved %d face tags", result.ApprovedCount),
		"approved_count":  result.ApprovedCount,
		"requested_count": result.RequestedCount,
		"skipped":         result.Skipped,
	})
}
