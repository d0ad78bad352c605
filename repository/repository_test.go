package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitGormDB(database.DriverSQLite, filepath.Join(t.TempDir(), "repo.db"), logger.Silent)
	if err != nil {
		t.Fatalf("InitGormDB: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createImage(t *testing.T, repo *ImageRepository, name string) *models.Image {
	t.Helper()
	img := &models.Image{OriginalPath: "originals/" + name, OriginalFilename: name}
	if err := repo.Create(context.Background(), img); err != nil {
		t.Fatalf("create image: %v", err)
	}
	return img
}

func TestImageRepositoryDetectionResult(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(openTestDB(t))
	img := createImage(t, repo, "a.jpg")

	if img.DetectionStatus != models.TaskPending {
		t.Fatalf("initial detection status = %q", img.DetectionStatus)
	}
	if err := repo.MarkTaskProcessing(ctx, img.ID, TaskDetection); err != nil {
		t.Fatalf("MarkTaskProcessing: %v", err)
	}

	face := &recognition.FaceMetadata{X: 0.5, Y: 0.4, Width: 0.2, Height: 0.25}
	if err := repo.UpdateDetectionResult(ctx, img.ID, face, nil); err != nil {
		t.Fatalf("UpdateDetectionResult: %v", err)
	}
	got, err := repo.GetByID(ctx, img.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DetectionStatus != models.TaskDone || !got.HasFace() || *got.FaceX != 0.5 || *got.FaceHeight != 0.25 {
		t.Fatalf("after success: status %q face %v", got.DetectionStatus, got.FaceCenter())
	}

	// a failed run keeps the previous face
	if err := repo.UpdateDetectionResult(ctx, img.ID, nil, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetByID(ctx, img.ID)
	if got.DetectionStatus != models.TaskFailed || got.DetectionError == nil || *got.DetectionError != "boom" {
		t.Errorf("after failure: status %q error %v", got.DetectionStatus, got.DetectionError)
	}
	if !got.HasFace() {
		t.Error("failed detection cleared the face columns")
	}

	// a successful run that finds nobody clears it
	if err := repo.UpdateDetectionResult(ctx, img.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetByID(ctx, img.ID)
	if got.HasFace() || got.DetectionError != nil {
		t.Errorf("after empty success: face %v error %v", got.FaceCenter(), got.DetectionError)
	}
}

func TestImageRepositoryRequiringProcessing(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(openTestDB(t))
	done := createImage(t, repo, "done.jpg")
	pending := createImage(t, repo, "pending.jpg")

	if err := repo.UpdateMetadataResult(ctx, done.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateDetectionResult(ctx, done.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateThumbnailResult(ctx, done.ID, nil); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListRequiringProcessing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != pending.ID {
		t.Errorf("requiring processing = %v, want only image %d", list, pending.ID)
	}

	if err := repo.MarkTaskProcessing(ctx, 999, TaskThumbnail); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("unknown image = %v, want ErrRecordNotFound", err)
	}
	if err := repo.MarkTaskProcessing(ctx, done.ID, Task("bogus")); err == nil {
		t.Error("unknown task accepted")
	}
}

func TestImageDeleteRemovesTags(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	images := NewImageRepository(db)
	tags := NewFaceTagRepository(db)
	img := createImage(t, images, "a.jpg")

	tag := &models.FaceTag{ImageID: img.ID, FaceX: 0.1, FaceY: 0.1, FaceWidth: 0.2, FaceHeight: 0.2}
	if err := tags.Create(ctx, tag); err != nil {
		t.Fatal(err)
	}
	if err := images.Delete(ctx, img.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tags.GetByID(ctx, tag.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("tag after image delete = %v, want ErrRecordNotFound", err)
	}
	if err := images.Delete(ctx, img.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestPersonListAllNaturalOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewPersonRepository(openTestDB(t))
	for _, name := range []string{"Guest 10", "guest 2", "Alice", "Guest 1"} {
		if err := repo.Create(ctx, &models.Person{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(ctx, &models.Person{Name: "   "}); err == nil {
		t.Error("blank name accepted")
	}

	people, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Alice", "Guest 1", "guest 2", "Guest 10"}
	if len(people) != len(want) {
		t.Fatalf("got %d people, want %d", len(people), len(want))
	}
	for i, p := range people {
		if p.Name != want[i] {
			t.Errorf("people[%d] = %q, want %q", i, p.Name, want[i])
		}
	}
}

func TestCanonicalEncodingIsWrittenOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewPersonRepository(openTestDB(t))
	person := &models.Person{Name: "Ada"}
	if err := repo.Create(ctx, person); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	wins := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.SetCanonicalEncodingIfEmpty(ctx, person.ID, []float64{float64(i + 1), 0})
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
				return
			}
			if ok {
				wins <- i + 1
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("%d writers won, want exactly 1", len(winners))
	}

	got, err := repo.GetByID(ctx, person.ID)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := got.Encoding()
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != 2 || enc[0] != float64(winners[0]) {
		t.Errorf("stored encoding %v, winner wrote %d", enc, winners[0])
	}

	with, err := repo.ListWithEncoding(ctx)
	if err != nil || len(with) != 1 {
		t.Errorf("ListWithEncoding = %v, %v", with, err)
	}
}

func TestPersonDeleteDetachesTags(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	people := NewPersonRepository(db)
	tags := NewFaceTagRepository(db)
	img := createImage(t, NewImageRepository(db), "a.jpg")

	person := &models.Person{Name: "Bob"}
	if err := people.Create(ctx, person); err != nil {
		t.Fatal(err)
	}
	tag := &models.FaceTag{ImageID: img.ID, PersonID: &person.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.Create(ctx, tag); err != nil {
		t.Fatal(err)
	}
	if err := people.Delete(ctx, person.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := tags.GetByID(ctx, tag.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PersonID != nil {
		t.Errorf("tag still points at person %d", *got.PersonID)
	}
}

func TestReviewOnlyMovesPendingTags(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tags := NewFaceTagRepository(db)
	img := createImage(t, NewImageRepository(db), "a.jpg")
	tag := &models.FaceTag{ImageID: img.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.Create(ctx, tag); err != nil {
		t.Fatal(err)
	}
	if tag.Status != models.FaceTagPending {
		t.Fatalf("new tag status = %q", tag.Status)
	}

	ok, err := tags.Review(ctx, tag.ID, models.FaceTagApproved, 7, 1234)
	if err != nil || !ok {
		t.Fatalf("first review = %v, %v", ok, err)
	}
	ok, err = tags.Review(ctx, tag.ID, models.FaceTagRejected, 8, 1235)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second review of an approved tag succeeded")
	}

	got, _ := tags.GetByID(ctx, tag.ID)
	if got.Status != models.FaceTagApproved || got.ReviewedByID == nil || *got.ReviewedByID != 7 || *got.ReviewedAt != 1234 {
		t.Errorf("reviewed tag = status %q by %v at %v", got.Status, got.ReviewedByID, got.ReviewedAt)
	}
}

func TestAssignSuggestionOnlyTouchesPending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tags := NewFaceTagRepository(db)
	people := NewPersonRepository(db)
	img := createImage(t, NewImageRepository(db), "a.jpg")
	person := &models.Person{Name: "Cleo"}
	if err := people.Create(ctx, person); err != nil {
		t.Fatal(err)
	}

	tag := &models.FaceTag{ImageID: img.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.Create(ctx, tag); err != nil {
		t.Fatal(err)
	}
	ok, err := tags.AssignSuggestion(ctx, tag.ID, person.ID, 0.83)
	if err != nil || !ok {
		t.Fatalf("AssignSuggestion = %v, %v", ok, err)
	}
	got, _ := tags.GetByID(ctx, tag.ID)
	if got.Status != models.FaceTagPending || !got.IsAutoGenerated || got.ConfidenceScore != 0.83 {
		t.Errorf("suggested tag = %+v", got)
	}
	if got.PersonName() != "Cleo" {
		t.Errorf("person not preloaded: %q", got.PersonName())
	}

	rejected := &models.FaceTag{ImageID: img.ID, Status: models.FaceTagRejected, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.Create(ctx, rejected); err != nil {
		t.Fatal(err)
	}
	if ok, err := tags.AssignSuggestion(ctx, rejected.ID, person.ID, 0.9); err != nil || ok {
		t.Errorf("suggestion on rejected tag = %v, %v", ok, err)
	}
	got, _ = tags.GetByID(ctx, rejected.ID)
	if got.Status != models.FaceTagRejected || got.PersonID != nil {
		t.Errorf("rejected tag changed: %+v", got)
	}
	if ok, err := tags.AssignSuggestion(ctx, 999, person.ID, 0.9); err != nil || ok {
		t.Errorf("unknown tag = %v, %v", ok, err)
	}
}

func TestCreateWithPersonIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tags := NewFaceTagRepository(db)
	people := NewPersonRepository(db)
	img := createImage(t, NewImageRepository(db), "a.jpg")

	tag := &models.FaceTag{ImageID: img.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	person := &models.Person{Name: "Dora"}
	if err := tags.CreateWithPerson(ctx, tag, person); err != nil {
		t.Fatalf("CreateWithPerson: %v", err)
	}
	got, _ := tags.GetByID(ctx, tag.ID)
	if got.PersonID == nil || *got.PersonID != person.ID || got.Status != models.FaceTagPending {
		t.Errorf("created tag = %+v", got)
	}

	// reusing the tag id makes the insert fail after the person was written
	dup := &models.FaceTag{ID: tag.ID, ImageID: img.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.CreateWithPerson(ctx, dup, &models.Person{Name: "Orphan"}); err == nil {
		t.Fatal("duplicate tag id was accepted")
	}
	all, err := people.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Name != "Dora" {
		t.Errorf("people after failed insert = %v", all)
	}
}

func TestFaceTagListings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tags := NewFaceTagRepository(db)
	images := NewImageRepository(db)
	a := createImage(t, images, "a.jpg")
	b := createImage(t, images, "b.jpg")

	statuses := []models.FaceTagStatus{models.FaceTagPending, models.FaceTagApproved, models.FaceTagRejected, models.FaceTagPending}
	var ids []uint
	for i, st := range statuses {
		tag := &models.FaceTag{ImageID: a.ID, Status: st, FaceWidth: 0.1, FaceHeight: 0.1}
		if i == 0 {
			tag.SetEncoding([]float64{1, 0})
		}
		if err := tags.Create(ctx, tag); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tag.ID)
	}
	other := &models.FaceTag{ImageID: b.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	other.SetEncoding([]float64{0, 1})
	if err := tags.Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	approved, err := tags.List(ctx, FaceTagFilter{ImageID: a.ID, Statuses: []models.FaceTagStatus{models.FaceTagApproved}})
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 1 || approved[0].ID != ids[1] {
		t.Errorf("approved tags = %v", approved)
	}
	all, _ := tags.List(ctx, FaceTagFilter{ImageID: a.ID})
	if len(all) != 4 {
		t.Errorf("all tags of image a = %d, want 4", len(all))
	}

	pending, total, err := tags.ListPending(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(pending) != 2 || pending[0].ID != other.ID || pending[1].ID != ids[3] {
		t.Errorf("pending page = %v (total %d)", pending, total)
	}

	untagged, err := tags.ListUntaggedWithEncoding(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(untagged) != 1 || untagged[0].ID != ids[0] {
		t.Errorf("untagged with encoding on image a = %v", untagged)
	}
	everywhere, _ := tags.ListUntaggedWithEncoding(ctx, 0)
	if len(everywhere) != 2 {
		t.Errorf("untagged with encoding anywhere = %d, want 2", len(everywhere))
	}

	byIDs, err := tags.GetByIDs(ctx, []uint{ids[2], 999, ids[0]})
	if err != nil {
		t.Fatal(err)
	}
	if len(byIDs) != 2 || byIDs[0].ID != ids[0] {
		t.Errorf("GetByIDs = %v", byIDs)
	}
}

func TestUpdateBox(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tags := NewFaceTagRepository(db)
	img := createImage(t, NewImageRepository(db), "a.jpg")
	tag := &models.FaceTag{ImageID: img.ID, FaceWidth: 0.1, FaceHeight: 0.1}
	if err := tags.Create(ctx, tag); err != nil {
		t.Fatal(err)
	}
	box := recognition.Box{X: 0.2, Y: 0.3, Width: 0.4, Height: 0.5}
	if err := tags.UpdateBox(ctx, tag.ID, models.FaceTagPending, box, nil); err != nil {
		t.Fatalf("UpdateBox: %v", err)
	}
	got, _ := tags.GetByID(ctx, tag.ID)
	if got.FaceX != 0.2 || got.FaceY != 0.3 || got.FaceWidth != 0.4 || got.FaceHeight != 0.5 || got.PersonID != nil {
		t.Errorf("updated tag = %+v", got)
	}

	// the tag was reviewed in between
	if err := tags.UpdateBox(ctx, tag.ID, models.FaceTagApproved, recognition.Box{Width: 0.1, Height: 0.1}, nil); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("stale status update = %v", err)
	}
	got, _ = tags.GetByID(ctx, tag.ID)
	if got.FaceX != 0.2 {
		t.Errorf("stale update was applied: %+v", got)
	}
}

func TestUsersAndRoles(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewGormUserRepository(db)
	roles := NewGormRoleRepository(db)

	u := &models.User{Username: "reviewer"}
	if err := u.SetPassword("secret"); err != nil {
		t.Fatal(err)
	}
	if err := users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	role, err := roles.Upsert(ctx, "moderators", []string{"face.tag"})
	if err != nil {
		t.Fatal(err)
	}
	again, err := roles.Upsert(ctx, "moderators", []string{"face.review"})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != role.ID {
		t.Errorf("upsert created a second role: %d vs %d", again.ID, role.ID)
	}
	if err := roles.AddUserToRole(ctx, u.ID, role.ID); err != nil {
		t.Fatal(err)
	}
	if err := roles.AddUserToRole(ctx, u.ID, role.ID); err != nil {
		t.Errorf("second assignment: %v", err)
	}

	got, err := users.GetByUsername(ctx, "reviewer")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsReviewer() {
		t.Errorf("role permissions not applied: %v", got.EffectivePermissions())
	}
	if !got.CheckPassword("secret") {
		t.Error("password check failed")
	}
	if n, err := users.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if err := users.SetGlobalPermissions(ctx, 999, nil); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("unknown user = %v", err)
	}
}

func TestThumbnailRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	repo := NewThumbnailRepository(sqlDB, database.DriverSQLite)

	for i, alias := range []string{"small", "large"} {
		info := database.ThumbnailInfo{ImageID: 3, Alias: alias, ThumbnailPath: fmt.Sprintf("thumbnails/3/%d.jpg", i), Width: 10, Height: 10, GeneratedAt: 1}
		if err := repo.Set(ctx, info); err != nil {
			t.Fatal(err)
		}
	}
	list, err := repo.List(ctx, 3)
	if err != nil || len(list) != 2 || list[0].Alias != "large" {
		t.Errorf("List = %v, %v", list, err)
	}
	if err := repo.DeleteForImage(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, 3, "small"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get after delete = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.List(cancelled, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled List = %v", err)
	}
}
