package recognition

import (
	"errors"
	"fmt"
	"image"
)

const (
	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 5
	DefaultMinSize      = 30
)

// DetectParams controls a multi-scale sliding-window cascade scan
type DetectParams struct {
	// ScaleFactor is how much the search window grows per scale step, > 1
	ScaleFactor float64
	// MinNeighbors is the number of overlapping positive windows a region needs
	MinNeighbors int
	// MinSize is the smallest face side in pixels
	MinSize int
}

func DefaultDetectParams() DetectParams {
	return DetectParams{
		ScaleFactor:  DefaultScaleFactor,
		MinNeighbors: DefaultMinNeighbors,
		MinSize:      DefaultMinSize,
	}
}

func (p DetectParams) Validate() error {
	var errs []error
	if !(p.ScaleFactor > 1) {
		errs = append(errs, fmt.Errorf("scale factor must be > 1, got %v", p.ScaleFactor))
	}
	if p.MinNeighbors < 1 {
		errs = append(errs, fmt.Errorf("min neighbors must be >= 1, got %d", p.MinNeighbors))
	}
	if p.MinSize < 1 {
		errs = append(errs, fmt.Errorf("min size must be >= 1, got %d", p.MinSize))
	}
	return errors.Join(errs...)
}

// Detector is a classical cascade face detector. implementations return face
// rectangles in pixel coordinates of the given image, already merged by
// neighbor voting, and may return none.
type Detector interface {
	DetectFaces(gray *image.Gray, params DetectParams) []image.Rectangle
	// CountEyes runs the eye cascade over a face region
	CountEyes(face *image.Gray) int
	// Method is the algorithm family tag reported with every detection
	Method() string
	Close() error
}
