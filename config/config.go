package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/recognition"
)

const (
	DefaultOriginalsSubDir  = "originals"
	DefaultThumbnailsSubDir = "thumbnails"
)

const (
	DetectorCascade = "cascade"
	DetectorPigo    = "pigo"
)

const (
	defaultQueueSize          = 200
	defaultNumWorkers         = 4
	defaultPigoMinQuality     = 5.0
	defaultJWTExpirationHours = 24
)

type Config struct {
	// database
	DatabaseDriver string
	DatabasePath   string // sqlite file or postgres DSN

	// media storage
	MediaStoragePath string
	OriginalsSubDir  string
	ThumbnailsSubDir string
	ThumbnailAliases []media.ThumbnailAlias

	// worker settings
	ThumbnailQueueSize int
	NumImageWorkers    int

	// detection
	DetectorBackend  string
	FaceCascadePath  string
	EyeCascadePath   string
	PigoCascadePath  string
	PigoMinQuality   float64
	Recognition      recognition.ServiceConfig
	SuggestionsLimit int

	// http
	JWTSecret      string
	JWTExpiration  time.Duration
	AllowedOrigins []string
	Port           string
}

// MediaSubDirs maps asset types to their directories under MediaStoragePath
func (c Config) MediaSubDirs() map[media.AssetType]string {
	return map[media.AssetType]string{
		media.AssetTypeOriginal:  c.OriginalsSubDir,
		media.AssetTypeThumbnail: c.ThumbnailsSubDir,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// getEnvThresholdOrDefault accepts only values in (0, 1]
func getEnvThresholdOrDefault(envVar string, defaultVal float64) float64 {
	val := getEnvFloatOrDefault(envVar, defaultVal)
	if val > 1 {
		log.Printf("Warning: %s must be at most 1, got %g. Using default %g", envVar, val, defaultVal)
		return defaultVal
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadDotEnv loads a .env file when one exists. real environment variables win.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
}

func LoadConfig() (Config, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER '%s'", driver)
	}
	dbPath := getEnvOrDefault("DATABASE_PATH", "faces.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	backend := strings.ToLower(getEnvOrDefault("DETECTOR_BACKEND", DetectorCascade))
	if backend != DetectorCascade && backend != DetectorPigo {
		return Config{}, fmt.Errorf("unsupported DETECTOR_BACKEND '%s'", backend)
	}

	params := recognition.DetectParams{
		ScaleFactor:  getEnvFloatOrDefault("DETECTION_SCALE_FACTOR", recognition.DefaultScaleFactor),
		MinNeighbors: getEnvIntOrDefault("DETECTION_MIN_NEIGHBORS", recognition.DefaultMinNeighbors),
		MinSize:      getEnvIntOrDefault("DETECTION_MIN_SIZE", recognition.DefaultMinSize),
	}
	if err := params.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid detection settings: %w", err)
	}

	cfg := Config{
		DatabaseDriver: driver,
		DatabasePath:   dbPath,

		MediaStoragePath: absMediaStorage,
		OriginalsSubDir:  getEnvOrDefault("ORIGINALS_SUBDIR", DefaultOriginalsSubDir),
		ThumbnailsSubDir: getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir),
		ThumbnailAliases: media.DefaultAliases,

		ThumbnailQueueSize: getEnvIntOrDefault("THUMBNAIL_QUEUE_SIZE", defaultQueueSize),
		NumImageWorkers:    getEnvIntOrDefault("NUM_IMAGE_WORKERS", defaultNumWorkers),

		DetectorBackend: backend,
		FaceCascadePath: getEnvOrDefault("FACE_CASCADE_PATH", "./models/haarcascade_frontalface_default.xml"),
		EyeCascadePath:  getEnvOrDefault("EYE_CASCADE_PATH", "./models/haarcascade_eye.xml"),
		PigoCascadePath: getEnvOrDefault("PIGO_CASCADE_PATH", "./models/facefinder"),
		PigoMinQuality:  getEnvFloatOrDefault("PIGO_MIN_QUALITY", defaultPigoMinQuality),
		Recognition: recognition.ServiceConfig{
			Params:              params,
			MatchThreshold:      getEnvThresholdOrDefault("MATCH_THRESHOLD", recognition.DefaultMatchThreshold),
			SuggestionThreshold: getEnvThresholdOrDefault("SUGGESTION_THRESHOLD", recognition.DefaultSuggestionThreshold),
			PersonThreshold:     getEnvThresholdOrDefault("PERSON_MATCH_THRESHOLD", recognition.DefaultPersonThreshold),
		},
		SuggestionsLimit: getEnvIntOrDefault("SUGGESTIONS_PER_FACE", recognition.MaxSuggestionsPerFace),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiration:  time.Duration(getEnvIntOrDefault("JWT_EXPIRATION_HOURS", defaultJWTExpirationHours)) * time.Hour,
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		Port:           getEnvOrDefault("PORT", "8080"),
	}

	return cfg, nil
}
