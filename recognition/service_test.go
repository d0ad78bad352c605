package recognition

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

type fakeDetector struct {
	mu     sync.Mutex
	rects  []image.Rectangle
	eyes   int
	calls  int
	params DetectParams
	closed bool
}

func (f *fakeDetector) DetectFaces(gray *image.Gray, params DetectParams) []image.Rectangle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = params
	out := make([]image.Rectangle, len(f.rects))
	copy(out, f.rects)
	return out
}

func (f *fakeDetector) CountEyes(face *image.Gray) int { return f.eyes }

func (f *fakeDetector) Method() string { return "fake_cascade" }

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

func newTestService(t *testing.T, det Detector) *FaceService {
	t.Helper()
	svc, err := NewFaceService(det, DefaultServiceConfig())
	if err != nil {
		t.Fatalf("NewFaceService: %v", err)
	}
	return svc
}

func TestNewFaceServiceValidation(t *testing.T) {
	if _, err := NewFaceService(nil, DefaultServiceConfig()); err == nil {
		t.Error("expected error for nil detector")
	}

	cfg := DefaultServiceConfig()
	cfg.Params.ScaleFactor = 1.0
	cfg.Params.MinNeighbors = 0
	if _, err := NewFaceService(&fakeDetector{}, cfg); err == nil {
		t.Error("expected error for invalid params")
	}

	cfg = ServiceConfig{Params: DefaultDetectParams()}
	svc, err := NewFaceService(&fakeDetector{}, cfg)
	if err != nil {
		t.Fatalf("NewFaceService: %v", err)
	}
	if svc.Config().MatchThreshold != DefaultMatchThreshold {
		t.Errorf("match threshold = %v, want default", svc.Config().MatchThreshold)
	}
}

func TestDetectGrayNormalizesBoxes(t *testing.T) {
	det := &fakeDetector{rects: []image.Rectangle{image.Rect(270, 190, 370, 290)}, eyes: 2}
	svc := newTestService(t, det)

	out := svc.DetectGray(patternGray(640, 480, 1))
	if out.Status != DetectionOK || len(out.Faces) != 1 {
		t.Fatalf("outcome = %s with %d faces, want ok with 1", out.Status, len(out.Faces))
	}
	if out.ImageWidth != 640 || out.ImageHeight != 480 {
		t.Errorf("image size = %dx%d", out.ImageWidth, out.ImageHeight)
	}

	f := out.Faces[0]
	want := Box{X: 270.0 / 640, Y: 190.0 / 480, Width: 100.0 / 640, Height: 100.0 / 480}
	if math.Abs(f.X-0.422) > 1e-3 || math.Abs(f.Y-0.396) > 1e-3 ||
		math.Abs(f.Width-0.156) > 1e-3 || math.Abs(f.Height-0.208) > 1e-3 {
		t.Errorf("box = %+v, want ~%+v", f.Box, want)
	}
	if !f.Box.Valid() {
		t.Errorf("box %+v not valid", f.Box)
	}
	if len(f.Encoding) != EncodingLength || f.Encoding.IsZero() {
		t.Errorf("encoding len %d zero=%v", len(f.Encoding), f.Encoding.IsZero())
	}
	if f.Confidence < 0.1 || f.Confidence > 1 {
		t.Errorf("confidence %v out of range", f.Confidence)
	}
	if f.DetectionMethod != "fake_cascade" {
		t.Errorf("method = %q", f.DetectionMethod)
	}
	if det.params != DefaultDetectParams() {
		t.Errorf("detector got params %+v", det.params)
	}
}

func TestDetectGrayClipsOutOfBoundsRects(t *testing.T) {
	det := &fakeDetector{rects: []image.Rectangle{
		image.Rect(150, 150, 250, 250),
		image.Rect(500, 500, 600, 600),
	}}
	svc := newTestService(t, det)

	out := svc.DetectGray(patternGray(200, 200, 2))
	if len(out.Faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(out.Faces))
	}
	if out.Faces[0].PixelRect != image.Rect(150, 150, 200, 200) {
		t.Errorf("rect = %v, want clipped to image", out.Faces[0].PixelRect)
	}
	if !out.Faces[0].Box.Valid() {
		t.Errorf("box %+v not valid", out.Faces[0].Box)
	}
}

func TestDetectGrayNoFaces(t *testing.T) {
	svc := newTestService(t, &fakeDetector{})
	out := svc.DetectGray(patternGray(100, 100, 3))
	if out.Status != DetectionNoFaces || out.Found() {
		t.Errorf("status = %s, want no_faces", out.Status)
	}
	if out.Faces == nil {
		t.Error("faces should be an empty list, not nil")
	}
}

func TestDetectImageSubImageOffset(t *testing.T) {
	det := &fakeDetector{rects: []image.Rectangle{image.Rect(10, 10, 50, 50)}}
	svc := newTestService(t, det)

	base := patternGray(300, 300, 4)
	sub := base.SubImage(image.Rect(100, 100, 200, 200))
	out := svc.DetectImage(sub)
	if len(out.Faces) != 1 {
		t.Fatalf("got %d faces", len(out.Faces))
	}
	if math.Abs(out.Faces[0].X-0.1) > 1e-9 || math.Abs(out.Faces[0].Width-0.4) > 1e-9 {
		t.Errorf("box = %+v", out.Faces[0].Box)
	}
}

func TestDetectFile(t *testing.T) {
	det := &fakeDetector{rects: []image.Rectangle{image.Rect(20, 20, 80, 80)}, eyes: 1}
	svc := newTestService(t, det)

	t.Run("unreadable", func(t *testing.T) {
		out := svc.DetectFile(filepath.Join(t.TempDir(), "missing.jpg"))
		if out.Status != DetectionUnreadable {
			t.Errorf("status = %s, want unreadable", out.Status)
		}
	})

	t.Run("png", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 120, 100))
		for y := 0; y < 100; y++ {
			for x := 0; x < 120; x++ {
				img.Set(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8(x + y), A: 255})
			}
		}
		path := filepath.Join(t.TempDir(), "face.png")
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("save: %v", err)
		}

		out := svc.DetectFile(path)
		if out.Status != DetectionOK {
			t.Fatalf("status = %s, want ok", out.Status)
		}
		if out.ImageWidth != 120 || out.ImageHeight != 100 {
			t.Errorf("size = %dx%d", out.ImageWidth, out.ImageHeight)
		}
	})
}

func TestServiceFindSimilarUsesConfiguredThreshold(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MatchThreshold = 0.9
	svc, err := NewFaceService(&fakeDetector{}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// cosine 1/sqrt(2) maps to ~0.85
	if got := svc.FindSimilar(Encoding{1, 0}, []Candidate{{ID: 1, Encoding: Encoding{1, 1}}}, 0); len(got) != 0 {
		t.Errorf("expected no match at threshold 0.9, got %+v", got)
	}
	if got := svc.FindSimilar(Encoding{1, 0}, []Candidate{{ID: 1, Encoding: Encoding{1, 1}}}, 0.8); len(got) != 1 {
		t.Errorf("explicit threshold should override, got %+v", got)
	}
}

func TestToGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 15, 25))
	g := ToGray(img)
	if g.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Errorf("bounds = %v", g.Bounds())
	}

	already := image.NewGray(image.Rect(0, 0, 4, 4))
	if ToGray(already) != already {
		t.Error("origin-based gray image should be returned as is")
	}
}

func TestServiceClose(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(t, det)
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if !det.closed {
		t.Error("detector not closed")
	}
}
