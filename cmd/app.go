package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/mediasysfaces/config"
	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/recognition"
	"github.com/camden-git/mediasysfaces/repository"
	"github.com/camden-git/mediasysfaces/utils"
)

// app holds the collaborators shared by the commands that touch the database
type app struct {
	cfg       config.Config
	db        *gorm.DB
	sqlDB     *sql.DB
	store     media.Store
	processor *media.Processor

	users      repository.UserRepository
	roles      repository.RoleRepository
	images     *repository.ImageRepository
	people     *repository.PersonRepository
	tags       *repository.FaceTagRepository
	thumbnails *repository.ThumbnailRepository
}

func openApp(cfg config.Config) (*app, error) {
	if cfg.DatabaseDriver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabasePath, logger.Warn)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	store, err := media.NewLocalStorage(cfg.MediaStoragePath, cfg.MediaSubDirs())
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	return &app{
		cfg:        cfg,
		db:         db,
		sqlDB:      sqlDB,
		store:      store,
		processor:  media.NewProcessor(store, cfg.ThumbnailAliases),
		users:      repository.NewGormUserRepository(db),
		roles:      repository.NewGormRoleRepository(db),
		images:     repository.NewImageRepository(db),
		people:     repository.NewPersonRepository(db),
		tags:       repository.NewFaceTagRepository(db),
		thumbnails: repository.NewThumbnailRepository(sqlDB, cfg.DatabaseDriver),
	}, nil
}

func (a *app) Close() error {
	return a.sqlDB.Close()
}

// newFaceService loads the configured detector backend
func newFaceService(cfg config.Config) (*recognition.FaceService, error) {
	var (
		detector recognition.Detector
		err      error
	)
	switch cfg.DetectorBackend {
	case config.DetectorPigo:
		detector, err = utils.NewPigoDetector(cfg.PigoCascadePath, cfg.PigoMinQuality)
	default:
		detector, err = utils.NewCascadeDetector(cfg.FaceCascadePath, cfg.EyeCascadePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s detector: %w", cfg.DetectorBackend, err)
	}
	svc, err := recognition.NewFaceService(detector, cfg.Recognition)
	if err != nil {
		detector.Close()
		return nil, err
	}
	return svc, nil
}
