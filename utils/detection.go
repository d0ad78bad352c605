package utils

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/mediasysfaces/recognition"
)

const (
	CascadeMethod = "cascade_classifier"

	// CASCADE_SCALE_IMAGE, gocv does not export the flag
	cascadeScaleImage = 2

	eyeScaleFactor  = 1.1
	eyeMinNeighbors = 5
)

// CascadeDetector runs OpenCV Haar cascades for faces and eyes. OpenCV
// classifiers are not safe for concurrent use so every call takes the lock.
type CascadeDetector struct {
	mu      sync.Mutex
	face    gocv.CascadeClassifier
	eye     gocv.CascadeClassifier
	hasEyes bool
	closed  bool
}

// NewCascadeDetector loads the frontal face cascade and, when available, the
// eye cascade. a missing eye cascade only disables the eye signal of the
// quality score.
func NewCascadeDetector(facePath, eyePath string) (*CascadeDetector, error) {
	if facePath == "" {
		return nil, errors.New("detection(cascade): face cascade path is empty")
	}

	face := gocv.NewCascadeClassifier()
	if !face.Load(facePath) {
		face.Close()
		return nil, fmt.Errorf("detection(cascade): failed to load face cascade from %s", facePath)
	}
	log.Printf("detection(cascade): loaded face cascade %s", facePath)

	d := &CascadeDetector{face: face, eye: gocv.NewCascadeClassifier()}
	if eyePath != "" && d.eye.Load(eyePath) {
		d.hasEyes = true
		log.Printf("detection(cascade): loaded eye cascade %s", eyePath)
	} else {
		log.Printf("detection(cascade): eye cascade not available at %q, eye signal disabled", eyePath)
	}
	return d, nil
}

func (d *CascadeDetector) Method() string {
	return CascadeMethod
}

func (d *CascadeDetector) DetectFaces(gray *image.Gray, params recognition.DetectParams) []image.Rectangle {
	mat, err := grayToMat(gray)
	if err != nil {
		log.Printf("detection(cascade): %v", err)
		return nil
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	minSize := image.Pt(params.MinSize, params.MinSize)
	return d.face.DetectMultiScaleWithParams(mat, params.ScaleFactor, params.MinNeighbors,
		cascadeScaleImage, minSize, image.Point{})
}

func (d *CascadeDetector) CountEyes(face *image.Gray) int {
	if !d.hasEyes {
		return 0
	}
	mat, err := grayToMat(face)
	if err != nil {
		return 0
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return len(d.eye.DetectMultiScaleWithParams(mat, eyeScaleFactor, eyeMinNeighbors,
		0, image.Point{}, image.Point{}))
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	if err := d.face.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.eye.Close(); err != nil {
		errs = append(errs, err)
	}
	log.Println("detection(cascade): closed classifiers")
	return errors.Join(errs...)
}

// grayToMat copies a grayscale image into a single channel 8-bit Mat
func grayToMat(gray *image.Gray) (gocv.Mat, error) {
	if gray == nil || gray.Bounds().Empty() {
		return gocv.Mat{}, errors.New("empty image")
	}
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := make([]byte, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := gray.PixOffset(b.Min.X, y)
		buf = append(buf, gray.Pix[off:off+w]...)
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to build mat: %w", err)
	}
	return mat, nil
}
