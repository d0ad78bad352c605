package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
)

// ManualTagConfidence is the confidence recorded for tags a person drew by hand
const ManualTagConfidence = 1.0

// FileDetector runs detection on an image file; *recognition.FaceService satisfies it
type FileDetector interface {
	DetectFile(path string) recognition.DetectionOutcome
}

// CreateTagInput describes a manually drawn tag. PersonID selects an existing
// person, PersonName creates a new one; both empty leaves the tag unassigned.
type CreateTagInput struct {
	Box        recognition.Box
	PersonID   *uint
	PersonName string
	// Encoding is optional; without it one is taken from a fresh detection
	Encoding []float64
	// RequireEncoding rejects an unassigned tag when no encoding can be
	// obtained. tags naming a person always need one.
	RequireEncoding bool
}

type ApplySuggestionInput struct {
	FaceTagID  uint
	PersonID   uint
	Confidence float64
}

type UpdateTagInput struct {
	Box      recognition.Box
	PersonID *uint
}

// BulkResult reports a bulk approval. Skipped holds ids that were unknown or
// no longer pending.
type BulkResult struct {
	ApprovedCount  int    `json:"approved_count"`
	RequestedCount int    `json:"requested_count"`
	Skipped        []uint `json:"skipped"`
}

// FaceTagService owns the tag review workflow: pending -> approved | rejected.
type FaceTagService struct {
	tags     repository.FaceTagRepositoryInterface
	people   repository.PersonRepositoryInterface
	images   repository.ImageRepositoryInterface
	store    media.Store
	detector FileDetector
	now      func() time.Time
}

func NewFaceTagService(
	tags repository.FaceTagRepositoryInterface,
	people repository.PersonRepositoryInterface,
	images repository.ImageRepositoryInterface,
	store media.Store,
	detector FileDetector,
) *FaceTagService {
	return &FaceTagService{
		tags:     tags,
		people:   people,
		images:   images,
		store:    store,
		detector: detector,
		now:      time.Now,
	}
}

// CreateManual stores a new pending tag drawn by actor on an image
func (s *FaceTagService) CreateManual(ctx context.Context, actor *models.User, imageID uint, in CreateTagInput) (*models.FaceTag, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if !in.Box.Valid() {
		return nil, validationErrorf("face box %+v is outside the image", in.Box)
	}
	if len(in.Encoding) > 0 && len(in.Encoding) != recognition.EncodingLength {
		return nil, validationErrorf("encoding has %d values, want %d", len(in.Encoding), recognition.EncodingLength)
	}

	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("image %d", imageID)
		}
		return nil, err
	}

	var person *models.Person
	if in.PersonID != nil {
		person, err = s.people.GetByID(ctx, *in.PersonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, validationErrorf("person %d does not exist", *in.PersonID)
			}
			return nil, err
		}
	}

	enc := in.Encoding
	if len(enc) == 0 {
		enc = s.backfillEncoding(image, in.Box)
	}
	var newPerson *models.Person
	if person == nil {
		if name := strings.TrimSpace(in.PersonName); name != "" {
			newPerson = &models.Person{Name: name, CreatedByID: &actor.ID}
		}
	}
	if len(enc) == 0 && (in.RequireEncoding || person != nil || newPerson != nil) {
		return nil, validationErrorf("no face found near (%.3f, %.3f) in image %d", in.Box.X, in.Box.Y, imageID)
	}

	tag := &models.FaceTag{
		ImageID:         image.ID,
		FaceX:           in.Box.X,
		FaceY:           in.Box.Y,
		FaceWidth:       in.Box.Width,
		FaceHeight:      in.Box.Height,
		Status:          models.FaceTagPending,
		ConfidenceScore: ManualTagConfidence,
		TaggedByID:      &actor.ID,
	}
	tag.SetEncoding(enc)
	if newPerson != nil {
		if err := s.tags.CreateWithPerson(ctx, tag, newPerson); err != nil {
			return nil, err
		}
		person = newPerson
	} else {
		if person != nil {
			tag.PersonID = &person.ID
		}
		if err := s.tags.Create(ctx, tag); err != nil {
			return nil, err
		}
	}
	tag.Person = person

	if person != nil && len(enc) > 0 {
		s.offerCanonicalEncoding(ctx, person.ID, enc)
	}
	log.Printf("face-tags: user %d tagged image %d (tag %d, person %v)", actor.ID, image.ID, tag.ID, tag.PersonID)
	return tag, nil
}

// backfillEncoding re-detects the image and takes the encoding of the face
// closest to the tag. failures are logged and yield no encoding.
func (s *FaceTagService) backfillEncoding(image *models.Image, box recognition.Box) []float64 {
	if s.detector == nil || s.store == nil {
		return nil
	}
	path, err := s.store.GetFullPath(image.OriginalPath)
	if err != nil {
		log.Printf("face-tags: cannot resolve image %d for encoding: %v", image.ID, err)
		return nil
	}
	outcome := s.detector.DetectFile(path)
	if outcome.Status == recognition.DetectionUnreadable {
		log.Printf("face-tags: image %d is unreadable, no encoding for the tag", image.ID)
		return nil
	}
	idx := recognition.NearestFace(outcome.Faces, box.X, box.Y)
	if idx < 0 {
		log.Printf("face-tags: no face near (%.3f, %.3f) in image %d", box.X, box.Y, image.ID)
		return nil
	}
	return outcome.Faces[idx].Encoding
}

// offerCanonicalEncoding gives a person its first encoding. losing the race to
// another writer is fine.
func (s *FaceTagService) offerCanonicalEncoding(ctx context.Context, personID uint, enc []float64) {
	set, err := s.people.SetCanonicalEncodingIfEmpty(ctx, personID, enc)
	if err != nil {
		log.Printf("face-tags: failed to store canonical encoding for person %d: %v", personID, err)
		return
	}
	if set {
		log.Printf("face-tags: person %d now has a canonical encoding", personID)
	}
}

// ApplySuggestion assigns a suggested person to a pending tag. the tag stays
// pending until a reviewer decides; reviewed tags are final.
func (s *FaceTagService) ApplySuggestion(ctx context.Context, actor *models.User, in ApplySuggestionInput) (*models.FaceTag, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if in.FaceTagID == 0 || in.PersonID == 0 {
		return nil, validationErrorf("face_tag_id and person_id are required")
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, validationErrorf("confidence %v is outside [0, 1]", in.Confidence)
	}
	if _, err := s.people.GetByID(ctx, in.PersonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("person %d", in.PersonID)
		}
		return nil, err
	}
	tag, err := s.tags.GetByID(ctx, in.FaceTagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("face tag %d", in.FaceTagID)
		}
		return nil, err
	}
	if tag.Status != models.FaceTagPending {
		return nil, fmt.Errorf("%w: tag %d is %s", ErrInvalidTransition, tag.ID, tag.Status)
	}
	ok, err := s.tags.AssignSuggestion(ctx, tag.ID, in.PersonID, in.Confidence)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: tag %d is no longer pending", ErrInvalidTransition, tag.ID)
	}
	return s.tags.GetByID(ctx, tag.ID)
}

// Approve marks a pending tag approved and, when the tag's person has no
// canonical encoding yet, promotes the tag's encoding.
func (s *FaceTagService) Approve(ctx context.Context, reviewer *models.User, id uint) (*models.FaceTag, error) {
	return s.review(ctx, reviewer, id, models.FaceTagApproved)
}

// Reject marks a pending tag rejected. it never touches person encodings.
func (s *FaceTagService) Reject(ctx context.Context, reviewer *models.User, id uint) (*models.FaceTag, error) {
	return s.review(ctx, reviewer, id, models.FaceTagRejected)
}

func (s *FaceTagService) review(ctx context.Context, reviewer *models.User, id uint, to models.FaceTagStatus) (*models.FaceTag, error) {
	if !reviewer.IsReviewer() {
		return nil, ErrForbidden
	}
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("face tag %d", id)
		}
		return nil, err
	}
	return s.reviewTag(ctx, reviewer, tag, to)
}

func (s *FaceTagService) reviewTag(ctx context.Context, reviewer *models.User, tag *models.FaceTag, to models.FaceTagStatus) (*models.FaceTag, error) {
	id := tag.ID
	if !tag.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: tag %d is %s", ErrInvalidTransition, id, tag.Status)
	}

	at := s.now().Unix()
	ok, err := s.tags.Review(ctx, id, to, reviewer.ID, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		// another reviewer got there first
		return nil, fmt.Errorf("%w: tag %d is no longer pending", ErrInvalidTransition, id)
	}

	tag.Status = to
	tag.ReviewedByID = &reviewer.ID
	tag.ReviewedAt = &at
	if to == models.FaceTagApproved && tag.PersonID != nil && tag.HasEncoding() {
		enc, err := tag.Encoding()
		if err != nil {
			log.Printf("face-tags: tag %d has a corrupt encoding: %v", id, err)
		} else {
			s.offerCanonicalEncoding(ctx, *tag.PersonID, enc)
		}
	}
	log.Printf("face-tags: reviewer %d set tag %d to %s", reviewer.ID, id, to)
	return tag, nil
}

// BulkApprove approves every pending tag in ids and skips the rest
func (s *FaceTagService) BulkApprove(ctx context.Context, reviewer *models.User, ids []uint) (BulkResult, error) {
	if !reviewer.IsReviewer() {
		return BulkResult{}, ErrForbidden
	}
	if len(ids) == 0 {
		return BulkResult{}, validationErrorf("tag_ids array is required")
	}

	found, err := s.tags.GetByIDs(ctx, ids)
	if err != nil {
		return BulkResult{}, err
	}
	byID := make(map[uint]*models.FaceTag, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	result := BulkResult{RequestedCount: len(ids), Skipped: []uint{}}
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		_, err := s.reviewTag(ctx, reviewer, tag, models.FaceTagApproved)
		switch {
		case err == nil:
			result.ApprovedCount++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
			result.Skipped = append(result.Skipped, id)
		default:
			return result, err
		}
	}
	return result, nil
}

// ListForImage returns the tags viewer may see: reviewers see every status,
// everyone else only approved tags.
func (s *FaceTagService) ListForImage(ctx context.Context, viewer *models.User, imageID uint) ([]models.FaceTag, error) {
	if _, err := s.images.GetByID(ctx, imageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("image %d", imageID)
		}
		return nil, err
	}
	filter := repository.FaceTagFilter{ImageID: imageID}
	if !viewer.IsReviewer() {
		filter.Statuses = []models.FaceTagStatus{models.FaceTagApproved}
	}
	return s.tags.List(ctx, filter)
}

func (s *FaceTagService) ListPending(ctx context.Context, reviewer *models.User, page, pageSize int) ([]models.FaceTag, int64, error) {
	if !reviewer.IsReviewer() {
		return nil, 0, ErrForbidden
	}
	return s.tags.ListPending(ctx, page, pageSize)
}

// Get applies the same visibility rule as ListForImage
func (s *FaceTagService) Get(ctx context.Context, viewer *models.User, id uint) (*models.FaceTag, error) {
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("face tag %d", id)
		}
		return nil, err
	}
	if tag.Status != models.FaceTagApproved && !viewer.IsReviewer() && !taggedBy(tag, viewer) {
		return nil, notFoundf("face tag %d", id)
	}
	return tag, nil
}

// UpdateTag moves or reassigns a tag. its tagger may do so while the tag is
// pending; reviewed tags can only be changed by a reviewer. a moved box gets
// a fresh encoding.
func (s *FaceTagService) UpdateTag(ctx context.Context, actor *models.User, id uint, in UpdateTagInput) (*models.FaceTag, error) {
	tag, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if tag.Status != models.FaceTagPending && !actor.IsReviewer() {
		return nil, fmt.Errorf("%w: tag %d is %s", ErrInvalidTransition, tag.ID, tag.Status)
	}
	if !in.Box.Valid() {
		return nil, validationErrorf("face box %+v is outside the image", in.Box)
	}
	if in.PersonID != nil {
		if _, err := s.people.GetByID(ctx, *in.PersonID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, validationErrorf("person %d does not exist", *in.PersonID)
			}
			return nil, err
		}
	}
	if err := s.tags.UpdateBox(ctx, tag.ID, tag.Status, in.Box, in.PersonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tag %d changed while it was edited", ErrInvalidTransition, tag.ID)
		}
		return nil, err
	}
	if in.Box != (recognition.Box{X: tag.FaceX, Y: tag.FaceY, Width: tag.FaceWidth, Height: tag.FaceHeight}) {
		s.refreshEncoding(ctx, tag, in.Box)
	}
	return s.tags.GetByID(ctx, tag.ID)
}

// refreshEncoding re-derives the encoding of a moved tag. a box with no face
// under it loses its old encoding rather than keep one of another face.
func (s *FaceTagService) refreshEncoding(ctx context.Context, tag *models.FaceTag, box recognition.Box) {
	image, err := s.images.GetByID(ctx, tag.ImageID)
	if err != nil {
		log.Printf("face-tags: cannot load image %d of tag %d: %v", tag.ImageID, tag.ID, err)
		return
	}
	enc := s.backfillEncoding(image, box)
	if len(enc) == 0 && !tag.HasEncoding() {
		return
	}
	if err := s.tags.SetEncoding(ctx, tag.ID, enc); err != nil {
		log.Printf("face-tags: %v", err)
	}
}

func (s *FaceTagService) DeleteTag(ctx context.Context, actor *models.User, id uint) error {
	tag, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.tags.Delete(ctx, tag.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("face tag %d", id)
		}
		return err
	}
	log.Printf("face-tags: user %d deleted tag %d", actor.ID, id)
	return nil
}

func (s *FaceTagService) editable(ctx context.Context, actor *models.User, id uint) (*models.FaceTag, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("face tag %d", id)
		}
		return nil, err
	}
	if !actor.IsReviewer() && !taggedBy(tag, actor) {
		return nil, ErrForbidden
	}
	return tag, nil
}

func taggedBy(tag *models.FaceTag, u *models.User) bool {
	return u != nil && tag.TaggedByID != nil && *tag.TaggedByID == u.ID
}
