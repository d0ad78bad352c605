package recognition

import (
	"image"
	"log"
	"math"

	"github.com/disintegration/imaging"
)

const normEpsilon = 1e-7

// grayGrid is a row-major intensity grid
type grayGrid struct {
	pix  []uint8
	cols int
	rows int
}

func (g grayGrid) at(row, col int) uint8 {
	return g.pix[row*g.cols+col]
}

// gridFromGray copies an *image.Gray into a tightly packed grid, honoring the
// image bounds and stride of sub-images.
func gridFromGray(img *image.Gray) grayGrid {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		pix = append(pix, img.Pix[off:off+w]...)
	}
	return grayGrid{pix: pix, cols: w, rows: h}
}

// canonicalGrid resizes a face region to CanonicalFaceSize x CanonicalFaceSize
func canonicalGrid(face *image.Gray) grayGrid {
	resized := imaging.Resize(face, CanonicalFaceSize, CanonicalFaceSize, imaging.Linear)
	b := resized.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// gray input keeps R, G and B equal
			pix[y*w+x] = resized.Pix[y*resized.Stride+x*4]
		}
	}
	return grayGrid{pix: pix, cols: w, rows: h}
}

// ExtractDescriptor converts a face region into a fixed-length encoding made of
// an intensity histogram, raw image moments and an LBP histogram. the region is
// resized to a canonical size first so encodings of differently sized boxes are
// comparable. degenerate input yields the zero encoding.
func ExtractDescriptor(face *image.Gray) (enc Encoding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recognition: descriptor extraction failed: %v", r)
			enc = make(Encoding, EncodingLength)
		}
	}()

	if face == nil || face.Bounds().Dx() <= 0 || face.Bounds().Dy() <= 0 {
		return make(Encoding, EncodingLength)
	}

	grid := canonicalGrid(face)
	if grid.cols < 3 || grid.rows < 3 {
		return make(Encoding, EncodingLength)
	}

	hist := intensityHistogram(grid)
	moments := rawMoments(grid)
	lbp := lbpHistogram(grid)

	features := make(Encoding, 0, EncodingLength)
	features = append(features, hist[:HistogramBins]...)
	features = append(features, l2Normalize(moments[:])...)
	features = append(features, lbp[:LBPBins]...)

	return l2Normalize(features)
}

// intensityHistogram returns the 256-bin intensity histogram as probability mass
func intensityHistogram(g grayGrid) []float64 {
	hist := make([]float64, 256)
	for _, p := range g.pix {
		hist[p]++
	}
	return normalizeMass(hist)
}

// rawMoments returns m00, m10, m01, m20, m11, m02, m30, m21, m12, m03 where x
// is the column and y the row
func rawMoments(g grayGrid) [MomentFeatures]float64 {
	var m [MomentFeatures]float64
	for row := 0; row < g.rows; row++ {
		y := float64(row)
		for col := 0; col < g.cols; col++ {
			v := float64(g.at(row, col))
			if v == 0 {
				continue
			}
			x := float64(col)
			m[0] += v
			m[1] += x * v
			m[2] += y * v
			m[3] += x * x * v
			m[4] += x * y * v
			m[5] += y * y * v
			m[6] += x * x * x * v
			m[7] += x * x * y * v
			m[8] += x * y * y * v
			m[9] += y * y * y * v
		}
	}
	return m
}

// lbpOffsets walks the 8 neighbors clockwise starting at the top-left; bit i
// is set when neighbor i is >= the center pixel.
var lbpOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1},
}

// lbpPattern computes the 8-bit local binary pattern of an interior pixel
func lbpPattern(g grayGrid, row, col int) uint8 {
	center := g.at(row, col)
	var pattern uint8
	for bit, off := range lbpOffsets {
		if g.at(row+off[0], col+off[1]) >= center {
			pattern |= 1 << uint(bit)
		}
	}
	return pattern
}

// lbpHistogram returns the 256-bin histogram of interior LBP codes as probability mass
func lbpHistogram(g grayGrid) []float64 {
	hist := make([]float64, 256)
	for row := 1; row < g.rows-1; row++ {
		for col := 1; col < g.cols-1; col++ {
			hist[lbpPattern(g, row, col)]++
		}
	}
	return normalizeMass(hist)
}

func normalizeMass(hist []float64) []float64 {
	var total float64
	for _, v := range hist {
		total += v
	}
	if total == 0 {
		return hist
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// l2Normalize divides by the L2 norm plus a small epsilon, returning a new slice
func l2Normalize(v []float64) Encoding {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	denom := math.Sqrt(sum) + normEpsilon
	out := make(Encoding, len(v))
	for i, x := range v {
		out[i] = x / denom
	}
	return out
}
