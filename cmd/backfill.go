package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/repository"
	"github.com/camden-git/mediasysfaces/workers"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run unfinished detection and thumbnail tasks",
	Long: `Run every image task that has not finished successfully, one image at a
time, and show progress. Thumbnails are regenerated after detection so they
can be cropped around the detected face.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().StringSlice("tasks", []string{"metadata", "detection", "thumbnail"}, "Tasks to run")
	backfillCmd.Flags().Int("limit", 0, "Process at most this many images (0 = all)")
	backfillCmd.Flags().Bool("dry-run", false, "List the pending work without running it")
}

// pendingTasks lists the unfinished tasks of img in run order. when chained
// is set the thumbnail is left to follow detection, as the workers do.
func pendingTasks(img models.Image, chained bool) []repository.Task {
	var tasks []repository.Task
	if img.MetadataStatus != models.TaskDone {
		tasks = append(tasks, repository.TaskMetadata)
	}
	detect := img.DetectionStatus != models.TaskDone
	if detect {
		tasks = append(tasks, repository.TaskDetection)
	}
	if img.ThumbnailStatus != models.TaskDone || detect {
		if !chained || !detect {
			tasks = append(tasks, repository.TaskThumbnail)
		}
	}
	return tasks
}

func filterTasks(tasks []repository.Task, allowed map[repository.Task]bool) []repository.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if allowed[t] {
			out = append(out, t)
		}
	}
	return out
}

func runBackfill(cmd *cobra.Command, args []string) error {
	allowed := make(map[repository.Task]bool)
	for _, name := range mustGetStringSlice(cmd, "tasks") {
		switch t := repository.Task(name); t {
		case repository.TaskMetadata, repository.TaskDetection, repository.TaskThumbnail:
			allowed[t] = true
		default:
			return fmt.Errorf("unknown task %q", name)
		}
	}
	limit := mustGetInt(cmd, "limit")
	dryRun := mustGetBool(cmd, "dry-run")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	images, err := a.images.ListRequiringProcessing(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(images) > limit {
		images = images[:limit]
	}

	type work struct {
		image models.Image
		tasks []repository.Task
	}
	var queue []work
	total := 0
	for _, img := range images {
		tasks := filterTasks(pendingTasks(img, false), allowed)
		if len(tasks) == 0 {
			continue
		}
		queue = append(queue, work{image: img, tasks: tasks})
		total += len(tasks)
	}
	if len(queue) == 0 {
		fmt.Println("Nothing to backfill.")
		return nil
	}

	if dryRun {
		for _, w := range queue {
			fmt.Printf("image %d (%s): %v\n", w.image.ID, w.image.OriginalPath, w.tasks)
		}
		fmt.Printf("%d task(s) on %d image(s)\n", total, len(queue))
		return nil
	}

	faces, err := newFaceService(cfg)
	if err != nil {
		return err
	}
	defer faces.Close()

	proc := workers.NewImageProcessor(workers.Deps{
		Images:     a.images,
		Thumbnails: a.thumbnails,
		Processor:  a.processor,
		Detector:   faces,
	}, 1, 1)
	defer proc.Stop()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Backfilling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("tasks"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	failed := 0
	for _, w := range queue {
		for _, task := range w.tasks {
			job := workers.ImageJob{ImageID: w.image.ID, RelativePath: w.image.OriginalPath, TaskType: task}
			if err := proc.RunJob(ctx, job); err != nil {
				failed++
				bar.Clear()
				fmt.Printf("image %d: %s failed: %v\n", w.image.ID, task, err)
			}
			bar.Add(1)
		}
	}
	bar.Finish()
	fmt.Println()
	fmt.Printf("Backfill complete: %d task(s), %d failed\n", total, failed)
	return nil
}
