package recognition

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
)

// ServiceConfig is supplied once when a FaceService is constructed
type ServiceConfig struct {
	Params              DetectParams
	MatchThreshold      float64
	SuggestionThreshold float64
	PersonThreshold     float64
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Params:              DefaultDetectParams(),
		MatchThreshold:      DefaultMatchThreshold,
		SuggestionThreshold: DefaultSuggestionThreshold,
		PersonThreshold:     DefaultPersonThreshold,
	}
}

// FaceService detects, encodes and compares faces. it is built once and handed
// to whoever needs it; it holds no global state and is safe for concurrent use
// as long as its Detector is.
type FaceService struct {
	detector Detector
	cfg      ServiceConfig
}

func NewFaceService(detector Detector, cfg ServiceConfig) (*FaceService, error) {
	if detector == nil {
		return nil, errors.New("recognition: detector is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("recognition: invalid detection parameters: %w", err)
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.SuggestionThreshold <= 0 {
		cfg.SuggestionThreshold = DefaultSuggestionThreshold
	}
	if cfg.PersonThreshold <= 0 {
		cfg.PersonThreshold = DefaultPersonThreshold
	}
	return &FaceService{detector: detector, cfg: cfg}, nil
}

func (s *FaceService) Config() ServiceConfig {
	return s.cfg
}

func (s *FaceService) Method() string {
	return s.detector.Method()
}

// DetectFile loads an image from disk, honoring EXIF orientation, and detects faces in it
func (s *FaceService) DetectFile(path string) DetectionOutcome {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		log.Printf("detection: could not read image %s: %v", path, err)
		return DetectionOutcome{Status: DetectionUnreadable, Faces: []DetectedFace{}}
	}
	return s.DetectImage(img)
}

// DetectImage converts img to grayscale and detects faces in it
func (s *FaceService) DetectImage(img image.Image) DetectionOutcome {
	if img == nil || img.Bounds().Empty() {
		return DetectionOutcome{Status: DetectionUnreadable, Faces: []DetectedFace{}}
	}
	return s.DetectGray(ToGray(img))
}

// DetectGray runs the cascade scan and produces a normalized box, encoding and
// quality score for every face found
func (s *FaceService) DetectGray(gray *image.Gray) DetectionOutcome {
	if gray == nil || gray.Bounds().Empty() {
		return DetectionOutcome{Status: DetectionUnreadable, Faces: []DetectedFace{}}
	}
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	rects := s.detector.DetectFaces(gray, s.cfg.Params)
	faces := make([]DetectedFace, 0, len(rects))
	for _, r := range rects {
		r = r.Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		region, ok := gray.SubImage(r).(*image.Gray)
		if !ok {
			continue
		}
		local := r.Sub(bounds.Min)
		face := DetectedFace{
			Box:             NormalizeRect(local, w, h),
			Encoding:        ExtractDescriptor(region),
			Confidence:      ScoreQuality(region, s.detector.CountEyes(region)),
			DetectionMethod: s.detector.Method(),
			PixelRect:       local,
		}
		log.Printf("detection: face %d at (%.2f, %.2f) with confidence %.2f", len(faces)+1, face.X, face.Y, face.Confidence)
		faces = append(faces, face)
	}

	out := DetectionOutcome{Status: DetectionOK, Faces: faces, ImageWidth: w, ImageHeight: h}
	if len(faces) == 0 {
		out.Status = DetectionNoFaces
	}
	return out
}

func (s *FaceService) FindSimilar(target Encoding, candidates []Candidate, threshold float64) []Match {
	if threshold <= 0 {
		threshold = s.cfg.MatchThreshold
	}
	return FindSimilar(target, candidates, threshold)
}

func (s *FaceService) Close() error {
	return s.detector.Close()
}

// ToGray returns img as a grayscale image whose bounds start at the origin
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Pix[y*gray.Stride+x] = nrgba.Pix[y*nrgba.Stride+x*4]
		}
	}
	return gray
}
