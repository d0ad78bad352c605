package recognition

import "math"

// LargestFace returns the index of the face with the largest pixel area, or -1.
// ties go to the face found first.
func LargestFace(faces []DetectedFace) int {
	best := -1
	bestArea := -1
	for i, f := range faces {
		area := f.PixelRect.Dx() * f.PixelRect.Dy()
		if area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}

// NearestFace returns the index of the face whose normalized top-left corner is
// closest (Manhattan distance) to x, y, or -1. faces without an encoding are
// skipped. ties go to the face found first.
func NearestFace(faces []DetectedFace, x, y float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, f := range faces {
		if f.Encoding.IsZero() {
			continue
		}
		dist := math.Abs(f.X-x) + math.Abs(f.Y-y)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// FaceMetadata is the single best face stored on an image row. X and Y are the
// normalized center of the face, which is what the crop engine consumes.
type FaceMetadata struct {
	X      float64 `json:"face_x"`
	Y      float64 `json:"face_y"`
	Width  float64 `json:"face_width"`
	Height float64 `json:"face_height"`
}

func MetadataFor(face DetectedFace) FaceMetadata {
	cx, cy := face.Center()
	return FaceMetadata{
		X:      clamp01(cx),
		Y:      clamp01(cy),
		Width:  face.Width,
		Height: face.Height,
	}
}

// BestFaceMetadata picks the largest face of an outcome. ok is false when
// nothing was detected.
func BestFaceMetadata(outcome DetectionOutcome) (FaceMetadata, bool) {
	if !outcome.Found() {
		return FaceMetadata{}, false
	}
	idx := LargestFace(outcome.Faces)
	if idx < 0 {
		return FaceMetadata{}, false
	}
	return MetadataFor(outcome.Faces[idx]), true
}
