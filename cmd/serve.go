package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
	"github.com/camden-git/mediasysfaces/handlers"
	"github.com/camden-git/mediasysfaces/realtime"
	"github.com/camden-git/mediasysfaces/services"
	"github.com/camden-git/mediasysfaces/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API together with the background image workers and the
websocket hub that broadcasts tag and processing events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().Bool("requeue", true, "Queue images with unfinished tasks on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if port := mustGetString(cmd, "port"); port != "" {
		cfg.Port = port
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	faces, err := newFaceService(cfg)
	if err != nil {
		return err
	}
	defer faces.Close()
	log.Printf("Face detection backend: %s", faces.Method())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	log.Printf("Initializing image processor worker pool (Workers: %d, Queue Size: %d)...", cfg.NumImageWorkers, cfg.ThumbnailQueueSize)
	imageProcessor := workers.NewImageProcessor(workers.Deps{
		Images:     a.images,
		Thumbnails: a.thumbnails,
		Processor:  a.processor,
		Detector:   faces,
		Hub:        hub,
	}, cfg.ThumbnailQueueSize, cfg.NumImageWorkers)

	setup := services.NewSetupService(a.users, a.roles)
	if _, err := setup.SyncSuperAdminRole(ctx); err != nil {
		imageProcessor.Stop()
		return err
	}

	if mustGetBool(cmd, "requeue") {
		requeueUnfinished(ctx, a, imageProcessor)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Users:            a.users,
		Roles:            a.roles,
		Images:           a.images,
		Thumbnails:       a.thumbnails,
		Processor:        a.processor,
		Queue:            imageProcessor,
		Detector:         faces,
		Hub:              hub,
		FaceTags:         services.NewFaceTagService(a.tags, a.people, a.images, a.store, faces),
		People:           services.NewPersonService(a.people),
		Suggestions:      services.NewSuggestionService(a.tags, a.people, a.images, faces, faces.Config(), cfg.SuggestionsLimit),
		Setup:            setup,
		JWTSecret:        []byte(cfg.JWTSecret),
		JWTExpiration:    cfg.JWTExpiration,
		AllowedOrigins:   cfg.AllowedOrigins,
		ThumbnailsSubDir: cfg.ThumbnailsSubDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Media storage: %s", cfg.MediaStoragePath)
	log.Printf("Using database (%s): %s", cfg.DatabaseDriver, cfg.DatabasePath)
	log.Printf("Server starting on :%s", cfg.Port)
	err = server.ListenAndServe()

	imageProcessor.Stop()
	cancel()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on :%s: %w", cfg.Port, err)
	}
	log.Println("Server stopped")
	return nil
}

// requeueUnfinished hands images whose tasks never finished back to the
// workers, e.g. after a crash mid-detection
func requeueUnfinished(ctx context.Context, a *app, proc *workers.ImageProcessor) {
	images, err := a.images.ListRequiringProcessing(ctx)
	if err != nil {
		log.Printf("Warning: could not list unfinished images: %v", err)
		return
	}
	for _, img := range images {
		for _, task := range pendingTasks(img, true) {
			proc.QueueJob(workers.ImageJob{ImageID: img.ID, RelativePath: img.OriginalPath, TaskType: task})
		}
	}
	if len(images) > 0 {
		log.Printf("Re-queued %d image(s) with unfinished tasks", len(images))
	}
}
