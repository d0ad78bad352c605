package recognition

import (
	"image"
	"math"
)

const (
	// HistogramBins is the number of intensity histogram bins kept in an encoding
	HistogramBins = 64
	// MomentFeatures is the number of raw image moments kept in an encoding
	MomentFeatures = 10
	// LBPBins is the number of local binary pattern histogram bins kept in an encoding
	LBPBins = 64

	// EncodingLength is the fixed length of every face encoding (64 + 10 + 64)
	EncodingLength = HistogramBins + MomentFeatures + LBPBins

	// CanonicalFaceSize is the side of the square a face region is resized to before encoding
	CanonicalFaceSize = 64
)

const (
	DefaultMatchThreshold      = 0.6
	DefaultSuggestionThreshold = 0.6
	DefaultPersonThreshold     = 0.7
	MaxSuggestionsPerFace      = 3
)

// Box is a face bounding box in normalized image coordinates (top-left origin)
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box and its extents stay inside the unit square
func (b Box) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	const eps = 1e-9
	return b.X+b.Width <= 1+eps && b.Y+b.Height <= 1+eps
}

// Center returns the normalized center point of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// NormalizeRect converts a pixel rectangle into a normalized box for an image of w x h pixels.
func NormalizeRect(r image.Rectangle, w, h int) Box {
	if w <= 0 || h <= 0 {
		return Box{}
	}
	fw, fh := float64(w), float64(h)
	return Box{
		X:      clamp01(float64(r.Min.X) / fw),
		Y:      clamp01(float64(r.Min.Y) / fh),
		Width:  clamp01(float64(r.Dx()) / fw),
		Height: clamp01(float64(r.Dy()) / fh),
	}
}

// Encoding is a fixed-length face descriptor
type Encoding []float64

// IsZero reports whether the encoding is empty or carries no signal. a zero
// encoding is never a valid comparison target.
func (e Encoding) IsZero() bool {
	for _, v := range e {
		if v != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of the encoding
func (e Encoding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// DetectedFace is a single face found in an image. it is ephemeral until a tag
// is created from it.
type DetectedFace struct {
	Box
	Encoding        Encoding        `json:"encoding"`
	Confidence      float64         `json:"confidence"`
	DetectionMethod string          `json:"detection_method"`
	PixelRect       image.Rectangle `json:"-"`
}

// DetectionStatus tells callers which branch of a detection they are looking at
type DetectionStatus string

const (
	DetectionOK         DetectionStatus = "ok"
	DetectionNoFaces    DetectionStatus = "no_faces"
	DetectionUnreadable DetectionStatus = "unreadable"
)

// DetectionOutcome is the result of running detection over one image
type DetectionOutcome struct {
	Status      DetectionStatus `json:"status"`
	Faces       []DetectedFace  `json:"faces"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
}

// Found reports whether at least one face was detected
func (o DetectionOutcome) Found() bool {
	return o.Status == DetectionOK && len(o.Faces) > 0
}

// Candidate is an identified encoding that can be ranked against a target
type Candidate struct {
	ID       uint
	Encoding Encoding
}

// Match is a ranked candidate that passed the similarity threshold
type Match struct {
	ID    uint    `json:"id"`
	Score float64 `json:"score"`
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
