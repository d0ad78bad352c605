package recognition

import (
	"image"
	"log"
	"math"
)

const (
	sharpnessWeight  = 0.3
	brightnessWeight = 0.2
	sizeWeight       = 0.3
	eyeWeight        = 0.2

	sharpnessScale = 500.0
	minScoredSize  = 30.0
	sizeScale      = 100.0

	minQuality     = 0.1
	maxQuality     = 1.0
	defaultQuality = 0.5
)

// QualityBreakdown holds the individual quality signals for a face region
type QualityBreakdown struct {
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Size       float64 `json:"size"`
	Eyes       float64 `json:"eyes"`
	Score      float64 `json:"score"`
}

// ScoreQuality rates a raw (not resized) face region. eyes is the number of
// eyes a detector found inside the region. the score is advisory and always in
// [0.1, 1.0].
func ScoreQuality(face *image.Gray, eyes int) float64 {
	return AnalyzeQuality(face, eyes).Score
}

// AnalyzeQuality is ScoreQuality with the individual signals exposed
func AnalyzeQuality(face *image.Gray, eyes int) (q QualityBreakdown) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recognition: quality scoring failed: %v", r)
			q = QualityBreakdown{Score: defaultQuality}
		}
	}()

	if face == nil || face.Bounds().Dx() <= 0 || face.Bounds().Dy() <= 0 {
		return QualityBreakdown{Score: defaultQuality}
	}
	grid := gridFromGray(face)

	q.Sharpness = clamp(laplacianVariance(grid)/sharpnessScale, 0, 1)
	q.Brightness = 1.0 - math.Abs(meanIntensity(grid)/255.0-0.5)*2
	q.Size = clamp((float64(grid.rows)-minScoredSize)/sizeScale, 0, 1)
	if eyes > 0 {
		q.Eyes = math.Min(float64(eyes)/2.0, 1.0)
	}

	score := q.Sharpness*sharpnessWeight +
		q.Brightness*brightnessWeight +
		q.Size*sizeWeight +
		q.Eyes*eyeWeight
	q.Score = clamp(score, minQuality, maxQuality)
	return q
}

func meanIntensity(g grayGrid) float64 {
	if len(g.pix) == 0 {
		return 0
	}
	var sum float64
	for _, p := range g.pix {
		sum += float64(p)
	}
	return sum / float64(len(g.pix))
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// laplacianVariance is the population variance of the 4-neighbor Laplacian response
func laplacianVariance(g grayGrid) float64 {
	n := g.rows * g.cols
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for row := 0; row < g.rows; row++ {
		up := reflect101(row-1, g.rows)
		down := reflect101(row+1, g.rows)
		for col := 0; col < g.cols; col++ {
			left := reflect101(col-1, g.cols)
			right := reflect101(col+1, g.cols)
			v := float64(g.at(up, col)) + float64(g.at(down, col)) +
				float64(g.at(row, left)) + float64(g.at(row, right)) -
				4*float64(g.at(row, col))
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
