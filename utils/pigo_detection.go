package utils

import (
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"

	"github.com/camden-git/mediasysfaces/recognition"
)

const (
	PigoMethod = "pigo_cascade"

	pigoShiftFactor  = 0.1
	pigoIoUThreshold = 0.2
)

// PigoDetector is a pure Go cascade back-end for hosts without OpenCV. it has
// no eye model so the eye signal of the quality score is always zero.
type PigoDetector struct {
	classifier *pigo.Pigo
	minQuality float32
	eyeOnce    sync.Once
}

func NewPigoDetector(cascadePath string, minQuality float64) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("detection(pigo): failed to read cascade file %s: %w", cascadePath, err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("detection(pigo): failed to unpack cascade %s: %w", cascadePath, err)
	}
	log.Printf("detection(pigo): loaded cascade %s", cascadePath)
	return &PigoDetector{classifier: classifier, minQuality: float32(minQuality)}, nil
}

func (d *PigoDetector) Method() string {
	return PigoMethod
}

func (d *PigoDetector) DetectFaces(gray *image.Gray, params recognition.DetectParams) []image.Rectangle {
	if gray == nil || gray.Bounds().Empty() {
		return nil
	}
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	pixels := make([]uint8, 0, cols*rows)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := gray.PixOffset(b.Min.X, y)
		pixels = append(pixels, gray.Pix[off:off+cols]...)
	}

	maxSize := cols
	if rows > maxSize {
		maxSize = rows
	}
	cParams := pigo.CascadeParams{
		MinSize:     params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	raw := d.classifier.RunCascade(cParams, 0.0)
	clusters := d.classifier.ClusterDetections(raw, pigoIoUThreshold)

	var rects []image.Rectangle
	for _, c := range clusters {
		if c.Q < d.minQuality {
			continue
		}
		if supportingWindows(c, raw) < params.MinNeighbors {
			continue
		}
		half := c.Scale / 2
		r := image.Rect(c.Col-half, c.Row-half, c.Col+half, c.Row+half).Intersect(image.Rect(0, 0, cols, rows))
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects
}

// supportingWindows counts the raw windows that overlap a cluster, which is the
// neighbor vote of a Haar style detector
func supportingWindows(cluster pigo.Detection, raw []pigo.Detection) int {
	n := 0
	for _, r := range raw {
		if detectionIoU(cluster, r) >= pigoIoUThreshold {
			n++
		}
	}
	return n
}

func detectionIoU(a, b pigo.Detection) float64 {
	ra := image.Rect(a.Col-a.Scale/2, a.Row-a.Scale/2, a.Col+a.Scale/2, a.Row+a.Scale/2)
	rb := image.Rect(b.Col-b.Scale/2, b.Row-b.Scale/2, b.Col+b.Scale/2, b.Row+b.Scale/2)
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}
	ia := inter.Dx() * inter.Dy()
	union := ra.Dx()*ra.Dy() + rb.Dx()*rb.Dy() - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func (d *PigoDetector) CountEyes(face *image.Gray) int {
	d.eyeOnce.Do(func() {
		log.Println("detection(pigo): no eye model, eye signal is always zero")
	})
	return 0
}

func (d *PigoDetector) Close() error {
	return nil
}
