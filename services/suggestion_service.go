package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
)

type FaceLocation struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Suggestion proposes a person for an untagged face
type Suggestion struct {
	PersonID        uint         `json:"person_id"`
	PersonName      string       `json:"person_name"`
	ConfidenceScore float64      `json:"confidence_score"`
	FaceTagID       uint         `json:"face_tag_id"`
	FaceLocation    FaceLocation `json:"face_location"`
}

type SuggestionReport struct {
	ImageID           uint         `json:"image_id"`
	Suggestions       []Suggestion `json:"suggestions"`
	UntaggedFaceCount int          `json:"untagged_face_count"`
}

// TagMatch pairs an untagged face with its similarity to a person
type TagMatch struct {
	Tag   models.FaceTag `json:"face_tag"`
	Score float64        `json:"similarity"`
}

// Comparer is the part of the face service suggestions need
type Comparer interface {
	FindSimilar(target recognition.Encoding, candidates []recognition.Candidate, threshold float64) []recognition.Match
}

type SuggestionService struct {
	tags     repository.FaceTagRepositoryInterface
	people   repository.PersonRepositoryInterface
	images   repository.ImageRepositoryInterface
	comparer Comparer

	threshold       float64
	perFace         int
	personThreshold float64
}

func NewSuggestionService(
	tags repository.FaceTagRepositoryInterface,
	people repository.PersonRepositoryInterface,
	images repository.ImageRepositoryInterface,
	comparer Comparer,
	cfg recognition.ServiceConfig,
	perFace int,
) *SuggestionService {
	if cfg.SuggestionThreshold <= 0 {
		cfg.SuggestionThreshold = recognition.DefaultSuggestionThreshold
	}
	if cfg.PersonThreshold <= 0 {
		cfg.PersonThreshold = recognition.DefaultPersonThreshold
	}
	if perFace <= 0 {
		perFace = recognition.MaxSuggestionsPerFace
	}
	return &SuggestionService{
		tags:            tags,
		people:          people,
		images:          images,
		comparer:        comparer,
		threshold:       cfg.SuggestionThreshold,
		perFace:         perFace,
		personThreshold: cfg.PersonThreshold,
	}
}

// SuggestForImage compares every untagged face of an image with the canonical
// encoding of every person and keeps the best few matches per face
func (s *SuggestionService) SuggestForImage(ctx context.Context, imageID uint) (SuggestionReport, error) {
	report := SuggestionReport{ImageID: imageID, Suggestions: []Suggestion{}}
	if _, err := s.images.GetByID(ctx, imageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report, notFoundf("image %d", imageID)
		}
		return report, err
	}

	untagged, err := s.tags.ListUntaggedWithEncoding(ctx, imageID)
	if err != nil {
		return report, err
	}
	report.UntaggedFaceCount = len(untagged)
	if len(untagged) == 0 {
		return report, nil
	}

	people, err := s.people.ListWithEncoding(ctx)
	if err != nil {
		return report, err
	}
	names := make(map[uint]string, len(people))
	candidates := make([]recognition.Candidate, 0, len(people))
	for i := range people {
		enc, err := people[i].Encoding()
		if err != nil {
			log.Printf("suggestions: skipping person %d with corrupt encoding: %v", people[i].ID, err)
			continue
		}
		names[people[i].ID] = people[i].Name
		candidates = append(candidates, recognition.Candidate{ID: people[i].ID, Encoding: enc})
	}

	for _, tag := range untagged {
		enc, err := tag.Encoding()
		if err != nil {
			log.Printf("suggestions: skipping tag %d with corrupt encoding: %v", tag.ID, err)
			continue
		}
		matches := s.comparer.FindSimilar(enc, candidates, s.threshold)
		if len(matches) > s.perFace {
			matches = matches[:s.perFace]
		}
		for _, m := range matches {
			report.Suggestions = append(report.Suggestions, Suggestion{
				PersonID:        m.ID,
				PersonName:      names[m.ID],
				ConfidenceScore: m.Score,
				FaceTagID:       tag.ID,
				FaceLocation: FaceLocation{
					X:      tag.FaceX,
					Y:      tag.FaceY,
					Width:  tag.FaceWidth,
					Height: tag.FaceHeight,
				},
			})
		}
	}
	log.Printf("suggestions: image %d has %d untagged faces, %d suggestions", imageID, report.UntaggedFaceCount, len(report.Suggestions))
	return report, nil
}

// FindMatchesForPerson searches untagged faces across all images for ones that
// look like the person. threshold <= 0 uses the configured person threshold.
func (s *SuggestionService) FindMatchesForPerson(ctx context.Context, personID uint, threshold float64) ([]TagMatch, error) {
	if threshold <= 0 {
		threshold = s.personThreshold
	}
	person, err := s.people.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("person %d", personID)
		}
		return nil, err
	}
	matches := []TagMatch{}
	if !person.HasEncoding() {
		return matches, nil
	}
	target, err := person.Encoding()
	if err != nil {
		return nil, err
	}

	untagged, err := s.tags.ListUntaggedWithEncoding(ctx, 0)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.FaceTag, len(untagged))
	candidates := make([]recognition.Candidate, 0, len(untagged))
	for _, tag := range untagged {
		enc, err := tag.Encoding()
		if err != nil {
			continue
		}
		byID[tag.ID] = tag
		candidates = append(candidates, recognition.Candidate{ID: tag.ID, Encoding: enc})
	}

	for _, m := range s.comparer.FindSimilar(target, candidates, threshold) {
		matches = append(matches, TagMatch{Tag: byID[m.ID], Score: m.Score})
	}
	return matches, nil
}
