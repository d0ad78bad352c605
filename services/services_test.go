package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/permissions"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
)

type fakeFileDetector struct {
	outcome recognition.DetectionOutcome
	paths   []string
}

func (f *fakeFileDetector) DetectFile(path string) recognition.DetectionOutcome {
	f.paths = append(f.paths, path)
	return f.outcome
}

type plainComparer struct{}

func (plainComparer) FindSimilar(target recognition.Encoding, candidates []recognition.Candidate, threshold float64) []recognition.Match {
	return recognition.FindSimilar(target, candidates, threshold)
}

// encodingAt returns a unit vector rotated by angle (radians) from axis 0
// towards axis 1, so two encodings compare at (cos(a-b)+1)/2
func encodingAt(angle float64) []float64 {
	enc := make([]float64, recognition.EncodingLength)
	enc[0] = math.Cos(angle)
	enc[1] = math.Sin(angle)
	return enc
}

type fixture struct {
	ctx      context.Context
	tags     *repository.FaceTagRepository
	people   *repository.PersonRepository
	images   *repository.ImageRepository
	users    repository.UserRepository
	detector *fakeFileDetector
	svc      *FaceTagService
	suggest  *SuggestionService

	tagger   *models.User
	other    *models.User
	reviewer *models.User
	image    *models.Image
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.InitGormDB(database.DriverSQLite, filepath.Join(t.TempDir(), "svc.db"), logger.Silent)
	if err != nil {
		t.Fatalf("InitGormDB: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	store, err := media.NewLocalStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		ctx:      context.Background(),
		tags:     repository.NewFaceTagRepository(db),
		people:   repository.NewPersonRepository(db),
		images:   repository.NewImageRepository(db),
		users:    repository.NewGormUserRepository(db),
		detector: &fakeFileDetector{outcome: recognition.DetectionOutcome{Status: recognition.DetectionNoFaces}},
	}
	f.svc = NewFaceTagService(f.tags, f.people, f.images, store, f.detector)
	f.svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	f.suggest = NewSuggestionService(f.tags, f.people, f.images, plainComparer{}, recognition.DefaultServiceConfig(), 0)

	f.tagger = f.user(t, "tagger", permissions.FaceTag)
	f.other = f.user(t, "other", permissions.FaceTag)
	f.reviewer = f.user(t, "reviewer", permissions.FaceTag, permissions.FaceReview)

	f.image = &models.Image{OriginalPath: "originals/group.jpg", OriginalFilename: "group.jpg"}
	if err := f.images.Create(f.ctx, f.image); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) user(t *testing.T, name string, perms ...string) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x", GlobalPermissions: perms}
	if err := f.users.Create(f.ctx, u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) person(t *testing.T, name string, enc []float64) *models.Person {
	t.Helper()
	p := &models.Person{Name: name}
	p.SetEncoding(enc)
	if err := f.people.Create(f.ctx, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) rawTag(t *testing.T, status models.FaceTagStatus, personID *uint, enc []float64) *models.FaceTag {
	t.Helper()
	tag := &models.FaceTag{ImageID: f.image.ID, Status: status, PersonID: personID, FaceX: 0.1, FaceY: 0.1, FaceWidth: 0.2, FaceHeight: 0.2, TaggedByID: &f.tagger.ID}
	tag.SetEncoding(enc)
	if err := f.tags.Create(f.ctx, tag); err != nil {
		t.Fatal(err)
	}
	return tag
}

var box = recognition.Box{X: 0.4, Y: 0.3, Width: 0.2, Height: 0.2}

func TestCreateManualSetsCanonicalEncodingOnce(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ada", nil)

	first, err := f.svc.CreateManual(f.ctx, f.tagger, f.image.ID, CreateTagInput{Box: box, PersonID: &p.ID, Encoding: encodingAt(0)})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if first.Status != models.FaceTagPending || first.IsAutoGenerated || *first.TaggedByID != f.tagger.ID {
		t.Errorf("new tag = %+v", first)
	}
	if first.PersonName() != "Ada" {
		t.Errorf("person name = %q", first.PersonName())
	}

	if _, err := f.svc.CreateManual(f.ctx, f.tagger, f.image.ID, CreateTagInput{Box: box, PersonID: &p.ID, Encoding: encodingAt(1)}); err != nil {
		t.Fatal(err)
	}
	got, _ := f.people.GetByID(f.ctx, p.ID)
	enc, _ := got.Encoding()
	if len(enc) != recognition.EncodingLength || enc[0] != 1 {
		t.Errorf("canonical encoding was not the first one: %v", enc[:2])
	}
	if len(f.detector.paths) != 0 {
		t.Errorf("detector ran although encodings were supplied")
	}
}

func TestCreateManualValidation(t *testing.T) {
	f := newFixture(t)
	missing := uint(404)

	cases := []struct {
		name  string
		image uint
		in    CreateTagInput
		want  error
	}{
		{"box out of range", f.image.ID, CreateTagInput{Box: recognition.Box{X: 0.9, Y: 0.1, Width: 0.2, Height: 0.1}}, ErrValidation},
		{"unknown person", f.image.ID, CreateTagInput{Box: box, PersonID: &missing}, ErrValidation},
		{"short encoding", f.image.ID, CreateTagInput{Box: box, Encoding: []float64{1, 2}}, ErrValidation},
		{"required encoding not found", f.image.ID, CreateTagInput{Box: box, RequireEncoding: true}, ErrValidation},
		{"new person without a face", f.image.ID, CreateTagInput{Box: box, PersonName: "Nobody"}, ErrValidation},
		{"unknown image", 999, CreateTagInput{Box: box}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateManual(f.ctx, f.tagger, tc.image, tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := f.svc.CreateManual(f.ctx, nil, f.image.ID, CreateTagInput{Box: box}); !errors.Is(err, ErrForbidden) {
		t.Errorf("anonymous create = %v", err)
	}
	people, _ := f.people.ListAll(f.ctx)
	if len(people) != 0 {
		t.Errorf("failed creates left %d people behind", len(people))
	}
}

func TestCreateManualBackfillsNearestFace(t *testing.T) {
	f := newFixture(t)
	f.detector.outcome = recognition.DetectionOutcome{
		Status: recognition.DetectionOK,
		Faces: []recognition.DetectedFace{
			{Box: recognition.Box{X: 0.05, Y: 0.05, Width: 0.1, Height: 0.1}, Encoding: encodingAt(0)},
			{Box: recognition.Box{X: 0.42, Y: 0.31, Width: 0.2, Height: 0.2}, Encoding: encodingAt(math.Pi / 2)},
		},
	}

	tag, err := f.svc.CreateManual(f.ctx, f.tagger, f.image.ID, CreateTagInput{Box: box, PersonName: "  New Person "})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if len(f.detector.paths) != 1 || filepath.Base(f.detector.paths[0]) != "group.jpg" {
		t.Errorf("detector paths = %v", f.detector.paths)
	}
	enc, err := tag.Encoding()
	if err != nil || len(enc) != recognition.EncodingLength || enc[1] != 1 {
		t.Fatalf("backfilled encoding picked the wrong face: %v %v", err, enc[:2])
	}
	if tag.PersonID == nil || tag.PersonName() != "New Person" {
		t.Fatalf("person not created from name: %+v", tag.Person)
	}
	person, _ := f.people.GetByID(f.ctx, *tag.PersonID)
	if !person.HasEncoding() || *person.CreatedByID != f.tagger.ID {
		t.Errorf("new person = %+v", person)
	}
}

func TestCreateManualWithoutFace(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ada", nil)

	if _, err := f.svc.CreateManual(f.ctx, f.tagger, f.image.ID, CreateTagInput{Box: box, PersonID: &p.ID}); !errors.Is(err, ErrValidation) {
		t.Errorf("assigned tag without encoding = %v, want validation error", err)
	}
	got, _ := f.people.GetByID(f.ctx, p.ID)
	if got.HasEncoding() {
		t.Error("person got an encoding from nowhere")
	}

	// an unassigned tag is only a marked region and may lack an encoding
	tag, err := f.svc.CreateManual(f.ctx, f.tagger, f.image.ID, CreateTagInput{Box: box})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if tag.HasEncoding() || tag.PersonID != nil {
		t.Errorf("unassigned tag = %+v", tag)
	}
	all, _ := f.tags.List(f.ctx, repository.FaceTagFilter{ImageID: f.image.ID})
	if len(all) != 1 {
		t.Errorf("stored %d tags, want 1", len(all))
	}
}

func TestReviewRequiresReviewer(t *testing.T) {
	f := newFixture(t)
	tag := f.rawTag(t, models.FaceTagPending, nil, nil)

	if _, err := f.svc.Approve(f.ctx, f.tagger, tag.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("approve by tagger = %v", err)
	}
	if _, err := f.svc.Reject(f.ctx, nil, tag.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("reject by nobody = %v", err)
	}
	if _, _, err := f.svc.ListPending(f.ctx, f.other, 1, 20); !errors.Is(err, ErrForbidden) {
		t.Errorf("pending list by non-reviewer = %v", err)
	}
	if _, err := f.svc.Approve(f.ctx, f.reviewer, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve unknown = %v", err)
	}
}

func TestApproveIsTerminal(t *testing.T) {
	f := newFixture(t)
	tag := f.rawTag(t, models.FaceTagPending, nil, nil)

	approved, err := f.svc.Approve(f.ctx, f.reviewer, tag.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.FaceTagApproved || *approved.ReviewedByID != f.reviewer.ID || *approved.ReviewedAt != 1700000000 {
		t.Errorf("approved tag = %+v", approved)
	}
	if _, err := f.svc.Approve(f.ctx, f.reviewer, tag.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve = %v", err)
	}
	if _, err := f.svc.Reject(f.ctx, f.reviewer, tag.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reject after approve = %v", err)
	}
}

func TestApprovePromotesEncodingRejectDoesNot(t *testing.T) {
	f := newFixture(t)
	ada := f.person(t, "Ada", nil)
	bob := f.person(t, "Bob", nil)
	adaTag := f.rawTag(t, models.FaceTagPending, &ada.ID, encodingAt(0.3))
	bobTag := f.rawTag(t, models.FaceTagPending, &bob.ID, encodingAt(0.6))

	if _, err := f.svc.Approve(f.ctx, f.reviewer, adaTag.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Reject(f.ctx, f.reviewer, bobTag.ID); err != nil {
		t.Fatal(err)
	}

	gotAda, _ := f.people.GetByID(f.ctx, ada.ID)
	if !gotAda.HasEncoding() {
		t.Error("approval did not set the canonical encoding")
	}
	gotBob, _ := f.people.GetByID(f.ctx, bob.ID)
	if gotBob.HasEncoding() {
		t.Error("rejection set a canonical encoding")
	}
}

func TestApplySuggestionKeepsPending(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ada", nil)
	tag := f.rawTag(t, models.FaceTagPending, nil, encodingAt(0))

	got, err := f.svc.ApplySuggestion(f.ctx, f.other, ApplySuggestionInput{FaceTagID: tag.ID, PersonID: p.ID, Confidence: 0.72})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if got.Status != models.FaceTagPending || !got.IsAutoGenerated || got.ConfidenceScore != 0.72 || *got.PersonID != p.ID {
		t.Errorf("applied tag = %+v", got)
	}

	if _, err := f.svc.ApplySuggestion(f.ctx, f.other, ApplySuggestionInput{FaceTagID: tag.ID}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing person = %v", err)
	}
	if _, err := f.svc.ApplySuggestion(f.ctx, f.other, ApplySuggestionInput{FaceTagID: tag.ID, PersonID: 999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown person = %v", err)
	}
	if _, err := f.svc.ApplySuggestion(f.ctx, f.other, ApplySuggestionInput{FaceTagID: 999, PersonID: p.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown tag = %v", err)
	}
}

func TestApplySuggestionRefusesReviewedTags(t *testing.T) {
	f := newFixture(t)
	ada := f.person(t, "Ada", nil)
	bob := f.person(t, "Bob", nil)

	approved := f.rawTag(t, models.FaceTagPending, &ada.ID, encodingAt(0))
	if _, err := f.svc.Approve(f.ctx, f.reviewer, approved.ID); err != nil {
		t.Fatal(err)
	}
	rejected := f.rawTag(t, models.FaceTagRejected, nil, encodingAt(0))

	for _, id := range []uint{approved.ID, rejected.ID} {
		before, _ := f.tags.GetByID(f.ctx, id)
		_, err := f.svc.ApplySuggestion(f.ctx, f.other, ApplySuggestionInput{FaceTagID: id, PersonID: bob.ID, Confidence: 0.61})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("suggestion on %s tag = %v", before.Status, err)
		}
		after, _ := f.tags.GetByID(f.ctx, id)
		if after.Status != before.Status || after.IsAutoGenerated {
			t.Errorf("%s tag changed: %+v", before.Status, after)
		}
	}
	got, _ := f.tags.GetByID(f.ctx, approved.ID)
	if *got.PersonID != ada.ID || got.ReviewedByID == nil || *got.ReviewedByID != f.reviewer.ID {
		t.Errorf("approved tag lost its review: %+v", got)
	}
}

func TestBulkApprove(t *testing.T) {
	f := newFixture(t)
	a := f.rawTag(t, models.FaceTagPending, nil, nil)
	b := f.rawTag(t, models.FaceTagRejected, nil, nil)
	c := f.rawTag(t, models.FaceTagPending, nil, nil)

	res, err := f.svc.BulkApprove(f.ctx, f.reviewer, []uint{a.ID, b.ID, 999, c.ID})
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}
	if res.ApprovedCount != 2 || res.RequestedCount != 4 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != b.ID || res.Skipped[1] != 999 {
		t.Errorf("skipped = %v", res.Skipped)
	}
	if _, err := f.svc.BulkApprove(f.ctx, f.reviewer, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty bulk = %v", err)
	}
	if _, err := f.svc.BulkApprove(f.ctx, f.other, []uint{a.ID}); !errors.Is(err, ErrForbidden) {
		t.Errorf("bulk by non-reviewer = %v", err)
	}
}

func TestListForImageVisibility(t *testing.T) {
	f := newFixture(t)
	f.rawTag(t, models.FaceTagPending, nil, nil)
	approved := f.rawTag(t, models.FaceTagApproved, nil, nil)
	f.rawTag(t, models.FaceTagRejected, nil, nil)

	all, err := f.svc.ListForImage(f.ctx, f.reviewer, f.image.ID)
	if err != nil || len(all) != 3 {
		t.Errorf("reviewer sees %d tags (%v), want 3", len(all), err)
	}
	visible, err := f.svc.ListForImage(f.ctx, f.other, f.image.ID)
	if err != nil || len(visible) != 1 || visible[0].ID != approved.ID {
		t.Errorf("non-reviewer sees %v (%v), want only tag %d", visible, err, approved.ID)
	}
	if _, err := f.svc.ListForImage(f.ctx, f.other, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown image = %v", err)
	}
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	f := newFixture(t)
	tag := f.rawTag(t, models.FaceTagPending, nil, nil)
	moved := recognition.Box{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1}

	if _, err := f.svc.UpdateTag(f.ctx, f.other, tag.ID, UpdateTagInput{Box: moved}); !errors.Is(err, ErrForbidden) {
		t.Errorf("update by stranger = %v", err)
	}
	got, err := f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: moved})
	if err != nil {
		t.Fatalf("update by tagger: %v", err)
	}
	if got.FaceX != 0.5 || got.FaceWidth != 0.1 {
		t.Errorf("updated = %+v", got)
	}
	if _, err := f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: recognition.Box{X: 2}}); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid box = %v", err)
	}

	if err := f.svc.DeleteTag(f.ctx, f.other, tag.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("delete by stranger = %v", err)
	}
	if err := f.svc.DeleteTag(f.ctx, f.reviewer, tag.ID); err != nil {
		t.Errorf("delete by reviewer: %v", err)
	}
	if _, err := f.svc.Get(f.ctx, f.reviewer, tag.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}
}

func TestSuggestForImageTopThree(t *testing.T) {
	f := newFixture(t)
	// cosines against the face: 1, 0.995, 0.980, 0.955 and 0 (below threshold)
	f.person(t, "exact", encodingAt(0))
	f.person(t, "near", encodingAt(0.1))
	f.person(t, "close", encodingAt(0.2))
	f.person(t, "fourth", encodingAt(0.3))
	f.person(t, "stranger", encodingAt(math.Pi/2))
	f.person(t, "unencoded", nil)

	untagged := f.rawTag(t, models.FaceTagPending, nil, encodingAt(0))
	f.rawTag(t, models.FaceTagPending, nil, nil)

	report, err := f.suggest.SuggestForImage(f.ctx, f.image.ID)
	if err != nil {
		t.Fatalf("SuggestForImage: %v", err)
	}
	if report.UntaggedFaceCount != 1 {
		t.Errorf("untagged = %d, want 1", report.UntaggedFaceCount)
	}
	want := []string{"exact", "near", "close"}
	if len(report.Suggestions) != len(want) {
		t.Fatalf("got %d suggestions, want %d", len(report.Suggestions), len(want))
	}
	for i, s := range report.Suggestions {
		if s.PersonName != want[i] || s.FaceTagID != untagged.ID {
			t.Errorf("suggestion %d = %+v, want %s", i, s, want[i])
		}
		if i > 0 && s.ConfidenceScore > report.Suggestions[i-1].ConfidenceScore {
			t.Errorf("suggestions not sorted by score")
		}
	}
	if report.Suggestions[0].FaceLocation.Width != 0.2 {
		t.Errorf("face location = %+v", report.Suggestions[0].FaceLocation)
	}

	if _, err := f.suggest.SuggestForImage(f.ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown image = %v", err)
	}
}

func TestFindMatchesForPerson(t *testing.T) {
	f := newFixture(t)
	p := f.person(t, "Ada", encodingAt(0))
	empty := f.person(t, "Nobody", nil)

	strong := f.rawTag(t, models.FaceTagPending, nil, encodingAt(0.1))
	f.rawTag(t, models.FaceTagPending, nil, encodingAt(math.Pi/2))
	f.rawTag(t, models.FaceTagPending, &p.ID, encodingAt(0))

	matches, err := f.suggest.FindMatchesForPerson(f.ctx, p.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Tag.ID != strong.ID || matches[0].Score < 0.99 {
		t.Errorf("matches = %+v", matches)
	}

	none, err := f.suggest.FindMatchesForPerson(f.ctx, empty.ID, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("person without encoding = %v, %v", none, err)
	}
	if _, err := f.suggest.FindMatchesForPerson(f.ctx, 999, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown person = %v", err)
	}
}

func TestPersonServicePermissions(t *testing.T) {
	f := newFixture(t)
	svc := NewPersonService(f.people)
	manager := f.user(t, "manager", permissions.PersonManage)

	p, err := svc.Create(f.ctx, f.tagger, " Ada ")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ada" {
		t.Errorf("name = %q", p.Name)
	}
	if _, err := svc.Create(f.ctx, f.tagger, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name = %v", err)
	}
	if _, err := svc.Rename(f.ctx, f.other, p.ID, "Eve"); !errors.Is(err, ErrForbidden) {
		t.Errorf("rename by stranger = %v", err)
	}
	renamed, err := svc.Rename(f.ctx, f.tagger, p.ID, "Ada L.")
	if err != nil || renamed.Name != "Ada L." {
		t.Errorf("rename by creator = %v, %v", renamed, err)
	}
	if err := svc.Delete(f.ctx, manager, p.ID); err != nil {
		t.Errorf("delete by manager: %v", err)
	}
	if _, err := svc.Get(f.ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}
}

func TestUpdateReviewedTag(t *testing.T) {
	f := newFixture(t)
	ada := f.person(t, "Ada", nil)
	bob := f.person(t, "Bob", nil)
	tag := f.rawTag(t, models.FaceTagPending, &ada.ID, encodingAt(0))
	if _, err := f.svc.Approve(f.ctx, f.reviewer, tag.ID); err != nil {
		t.Fatal(err)
	}
	same := recognition.Box{X: tag.FaceX, Y: tag.FaceY, Width: tag.FaceWidth, Height: tag.FaceHeight}

	if _, err := f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: same, PersonID: &bob.ID}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("tagger reassigning an approved tag = %v", err)
	}
	got, _ := f.tags.GetByID(f.ctx, tag.ID)
	if got.Status != models.FaceTagApproved || *got.PersonID != ada.ID {
		t.Errorf("approved tag changed: %+v", got)
	}

	got, err := f.svc.UpdateTag(f.ctx, f.reviewer, tag.ID, UpdateTagInput{Box: same, PersonID: &bob.ID})
	if err != nil {
		t.Fatalf("reviewer update: %v", err)
	}
	if *got.PersonID != bob.ID || got.Status != models.FaceTagApproved {
		t.Errorf("reviewer update = %+v", got)
	}
}

func TestUpdateTagRefreshesEncoding(t *testing.T) {
	f := newFixture(t)
	tag := f.rawTag(t, models.FaceTagPending, nil, encodingAt(0))
	moved := recognition.Box{X: 0.5, Y: 0.5, Width: 0.2, Height: 0.2}
	f.detector.outcome = recognition.DetectionOutcome{
		Status: recognition.DetectionOK,
		Faces: []recognition.DetectedFace{
			{Box: recognition.Box{X: 0.52, Y: 0.49, Width: 0.2, Height: 0.2}, Encoding: encodingAt(math.Pi / 2)},
		},
	}

	got, err := f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: moved})
	if err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}
	enc, _ := got.Encoding()
	if len(enc) != recognition.EncodingLength || enc[1] != 1 {
		t.Errorf("encoding not taken from the face under the moved box: %v", enc)
	}

	// unchanged box, no detection
	f.detector.paths = nil
	if _, err := f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: moved}); err != nil {
		t.Fatal(err)
	}
	if len(f.detector.paths) != 0 {
		t.Errorf("detector ran for an unmoved box")
	}

	f.detector.outcome = recognition.DetectionOutcome{Status: recognition.DetectionNoFaces}
	got, err = f.svc.UpdateTag(f.ctx, f.tagger, tag.ID, UpdateTagInput{Box: recognition.Box{X: 0.1, Y: 0.6, Width: 0.1, Height: 0.1}})
	if err != nil {
		t.Fatal(err)
	}
	if got.HasEncoding() {
		t.Error("moved box kept the encoding of another face")
	}
}
