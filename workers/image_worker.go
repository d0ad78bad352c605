package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/realtime"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
)

var ErrUnreadableImage = errors.New("image could not be decoded")

type ImageJob struct {
	ImageID      uint
	RelativePath string
	TaskType     repository.Task
}

func (j ImageJob) pendingKey() string {
	return fmt.Sprintf("%d:%s", j.ImageID, j.TaskType)
}

// ImageDetector is the detection entry point the workers use;
// *recognition.FaceService satisfies it
type ImageDetector interface {
	DetectFile(path string) recognition.DetectionOutcome
}

// Deps are the collaborators of an ImageProcessor. Hub may be nil.
type Deps struct {
	Images     repository.ImageRepositoryInterface
	Thumbnails repository.ThumbnailRepositoryInterface
	Processor  *media.Processor
	Detector   ImageDetector
	Hub        *realtime.Hub
}

// ImageProcessor runs the background tasks of uploaded images on a fixed
// number of workers. a (image, task) pair is queued at most once at a time and
// nothing is retried automatically.
type ImageProcessor struct {
	JobQueue chan ImageJob
	deps     Deps
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewImageProcessor(deps Deps, queueSize, numWorkers int) *ImageProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &ImageProcessor{
		JobQueue: make(chan ImageJob, queueSize),
		deps:     deps,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d image processing worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()
	log.Printf("Image worker %d started", id)
	for {
		select {
		case job, ok := <-ip.JobQueue:
			if !ok {
				log.Printf("Image worker %d stopping: Job queue closed", id)
				return
			}
			log.Printf("Worker %d: Received job type '%s' for image %d", id, job.TaskType, job.ImageID)
			if err := ip.RunJob(ip.ctx, job); err != nil {
				log.Printf("Worker %d: %s for image %d failed: %v", id, job.TaskType, job.ImageID, err)
			}
			ip.Mutex.Lock()
			delete(ip.Pending, job.pendingKey())
			ip.Mutex.Unlock()
			if job.TaskType == repository.TaskDetection && ip.ctx.Err() == nil {
				ip.QueueJob(ImageJob{ImageID: job.ImageID, RelativePath: job.RelativePath, TaskType: repository.TaskThumbnail})
			}

		case <-ip.StopChan:
			log.Printf("Image worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// QueueImage schedules the work for a fresh upload. thumbnails follow
// detection so they can be cropped around the face.
func (ip *ImageProcessor) QueueImage(imageID uint, relPath string) {
	ip.QueueJob(ImageJob{ImageID: imageID, RelativePath: relPath, TaskType: repository.TaskMetadata})
	ip.QueueJob(ImageJob{ImageID: imageID, RelativePath: relPath, TaskType: repository.TaskDetection})
}

// QueueJob queues a task unless the same task is already pending for the image
func (ip *ImageProcessor) QueueJob(job ImageJob) bool {
	key := job.pendingKey()

	ip.Mutex.Lock()
	if ip.Pending[key] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[key] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- job:
		log.Printf("Queued task '%s' for image %d", job.TaskType, job.ImageID)
		return true
	default:
		log.Printf("WARNING: Image processing job queue full. Failed to queue task '%s' for image %d", job.TaskType, job.ImageID)
		ip.Mutex.Lock()
		delete(ip.Pending, key)
		ip.Mutex.Unlock()
		return false
	}
}

// RunJob executes one task synchronously: it marks the task processing, runs
// it with panic recovery and records the outcome on the image row. the
// returned error is the task's failure, already persisted.
func (ip *ImageProcessor) RunJob(ctx context.Context, job ImageJob) error {
	images := ip.deps.Images
	if err := images.MarkTaskProcessing(ctx, job.ImageID, job.TaskType); err != nil {
		return fmt.Errorf("marking %s processing: %w", job.TaskType, err)
	}
	ip.deps.Hub.TaskEvent(job.ImageID, string(job.TaskType), models.TaskProcessing, nil)

	var taskErr error
	switch job.TaskType {
	case repository.TaskDetection:
		var face *recognition.FaceMetadata
		taskErr = ip.guard(job, func() error {
			var err error
			face, err = ip.detect(job)
			return err
		})
		if err := images.UpdateDetectionResult(ctx, job.ImageID, face, taskErr); err != nil {
			log.Printf("Worker: ERROR updating detection DB result for image %d: %v", job.ImageID, err)
		}
	case repository.TaskThumbnail:
		taskErr = ip.guard(job, func() error { return ip.thumbnails(ctx, job) })
		if err := images.UpdateThumbnailResult(ctx, job.ImageID, taskErr); err != nil {
			log.Printf("Worker: ERROR updating thumbnail DB result for image %d: %v", job.ImageID, err)
		}
	case repository.TaskMetadata:
		var meta *media.PhotoMetadata
		taskErr = ip.guard(job, func() error {
			var err error
			meta, err = ip.metadata(job)
			return err
		})
		if err := images.UpdateMetadataResult(ctx, job.ImageID, meta, taskErr); err != nil {
			log.Printf("Worker: ERROR updating metadata DB result for image %d: %v", job.ImageID, err)
		}
	default:
		return fmt.Errorf("unknown task type '%s'", job.TaskType)
	}

	status := models.TaskDone
	if taskErr != nil {
		status = models.TaskFailed
	}
	ip.deps.Hub.TaskEvent(job.ImageID, string(job.TaskType), status, taskErr)
	return taskErr
}

func (ip *ImageProcessor) guard(job ImageJob, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during %s: %v", job.TaskType, r)
			log.Printf("Worker: recovered %v", err)
		}
	}()
	return fn()
}

func (ip *ImageProcessor) originalPath(job ImageJob) (string, error) {
	fullPath, err := ip.deps.Processor.Store().GetFullPath(job.RelativePath)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(fullPath); statErr != nil {
		if os.IsNotExist(statErr) {
			return "", fmt.Errorf("original file not found: %w", statErr)
		}
		return "", fmt.Errorf("failed to stat original file: %w", statErr)
	}
	return fullPath, nil
}

// detect returns the largest face of the image, or nil when there is none
func (ip *ImageProcessor) detect(job ImageJob) (*recognition.FaceMetadata, error) {
	if ip.deps.Detector == nil {
		return nil, errors.New("face detector not configured")
	}
	fullPath, err := ip.originalPath(job)
	if err != nil {
		return nil, err
	}
	outcome := ip.deps.Detector.DetectFile(fullPath)
	if outcome.Status == recognition.DetectionUnreadable {
		log.Printf("Worker: image %d (%s) is unreadable", job.ImageID, job.RelativePath)
		return nil, ErrUnreadableImage
	}
	meta, ok := recognition.BestFaceMetadata(outcome)
	if !ok {
		log.Printf("Worker: Detection complete for image %d: no faces", job.ImageID)
		return nil, nil
	}
	log.Printf("Worker: Detection complete for image %d: %d face(s), best at (%.3f, %.3f)", job.ImageID, len(outcome.Faces), meta.X, meta.Y)
	return &meta, nil
}

// thumbnails renders every alias around the stored face and records the
// renditions in the thumbnail cache
func (ip *ImageProcessor) thumbnails(ctx context.Context, job ImageJob) error {
	if _, err := ip.originalPath(job); err != nil {
		return err
	}
	row, err := ip.deps.Images.GetByID(ctx, job.ImageID)
	if err != nil {
		return fmt.Errorf("loading image row: %w", err)
	}
	img, err := media.OpenImage(ip.deps.Processor.Store(), job.RelativePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	renditions, err := ip.deps.Processor.GenerateAll(img, row.FaceCenter(), fmt.Sprint(job.ImageID))
	if err != nil {
		return fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if ip.deps.Thumbnails != nil {
		if err := ip.cacheRenditions(ctx, job.ImageID, renditions); err != nil {
			return err
		}
	}
	log.Printf("Worker: Generated %d thumbnail(s) for image %d", len(renditions), job.ImageID)
	return nil
}

// cacheRenditions records renditions and removes files they replace
func (ip *ImageProcessor) cacheRenditions(ctx context.Context, imageID uint, renditions []media.Rendition) error {
	now := time.Now().Unix()
	for _, r := range renditions {
		old, err := ip.deps.Thumbnails.Get(ctx, imageID, r.Alias)
		switch {
		case err == nil && old.ThumbnailPath != r.Path:
			if err := ip.deps.Processor.Store().Delete(old.ThumbnailPath); err != nil {
				log.Printf("Worker: could not remove stale thumbnail %s: %v", old.ThumbnailPath, err)
			}
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}
		info := database.ThumbnailInfo{
			ImageID:       imageID,
			Alias:         r.Alias,
			ThumbnailPath: r.Path,
			Width:         r.Width,
			Height:        r.Height,
			GeneratedAt:   now,
		}
		if err := ip.deps.Thumbnails.Set(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

func (ip *ImageProcessor) metadata(job ImageJob) (*media.PhotoMetadata, error) {
	fullPath, err := ip.originalPath(job)
	if err != nil {
		return nil, err
	}
	meta, err := media.ReadPhotoMetadata(fullPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Worker: Extracted metadata for image %d", job.ImageID)
	return meta, nil
}

func (ip *ImageProcessor) Stop() {
	log.Println("Stopping image processor workers...")
	ip.cancel()
	close(ip.StopChan)
	ip.Wg.Wait()
	log.Println("All image processor workers stopped")
}
