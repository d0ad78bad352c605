package media

import (
	"image"

	"github.com/disintegration/imaging"
)

// FaceCenter mirrors the nullable face columns of an image row. X and Y are the
// normalized face center, Width and Height its normalized extent.
type FaceCenter struct {
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
}

// Complete reports whether all four coordinates are present
func (f *FaceCenter) Complete() bool {
	return f != nil && f.X != nil && f.Y != nil && f.Width != nil && f.Height != nil
}

// CropRequest describes one rendition. a zero Width or Height leaves that
// side unconstrained when Crop is false.
type CropRequest struct {
	Width  int
	Height int
	Crop   bool
	Face   *FaceCenter
}

// cropSize returns the largest window with the target aspect ratio that fits
// the image. sizes are truncated, never rounded.
func cropSize(imgW, imgH, targetW, targetH int) (int, int) {
	imgRatio := float64(imgW) / float64(imgH)
	targetRatio := float64(targetW) / float64(targetH)

	var cw, ch int
	if imgRatio > targetRatio {
		ch = imgH
		cw = int(float64(ch) * targetRatio)
	} else {
		cw = imgW
		ch = int(float64(cw) / targetRatio)
	}
	return max(cw, 1), max(ch, 1)
}

// FaceCropRect centers a target-ratio window on the face center (cx, cy given
// in normalized coordinates), shifting it back inside the image when it
// overflows an edge.
func FaceCropRect(imgW, imgH, targetW, targetH int, cx, cy float64) image.Rectangle {
	cw, ch := cropSize(imgW, imgH, targetW, targetH)

	faceX := int(cx * float64(imgW))
	faceY := int(cy * float64(imgH))

	left := faceX - cw/2
	top := faceY - ch/2
	right := left + cw
	bottom := top + ch

	if left < 0 {
		right -= left
		left = 0
	}
	if right > imgW {
		left -= right - imgW
		right = imgW
	}
	if top < 0 {
		bottom -= top
		top = 0
	}
	if bottom > imgH {
		top -= bottom - imgH
		bottom = imgH
	}

	return image.Rect(max(left, 0), max(top, 0), min(right, imgW), min(bottom, imgH))
}

// CenterCropRect is the target-ratio window centered on the image
func CenterCropRect(imgW, imgH, targetW, targetH int) image.Rectangle {
	cw, ch := cropSize(imgW, imgH, targetW, targetH)
	left := (imgW - cw) / 2
	top := (imgH - ch) / 2
	return image.Rect(left, top, left+cw, top+ch)
}

// FaceAwareCrop crops around the stored face and resizes to exactly
// Width x Height. when no crop is requested, the size is missing or any face
// coordinate is absent the image is returned untouched with false.
func FaceAwareCrop(img image.Image, req CropRequest) (image.Image, bool) {
	if !req.Crop || req.Width <= 0 || req.Height <= 0 || !req.Face.Complete() {
		return img, false
	}
	b := img.Bounds()
	if b.Empty() {
		return img, false
	}
	r := FaceCropRect(b.Dx(), b.Dy(), req.Width, req.Height, *req.Face.X, *req.Face.Y)
	return cropAndResize(img, r, req.Width, req.Height), true
}

// CenterCrop crops the center of the image and resizes to exactly Width x Height
func CenterCrop(img image.Image, req CropRequest) image.Image {
	b := img.Bounds()
	if b.Empty() || req.Width <= 0 || req.Height <= 0 {
		return img
	}
	r := CenterCropRect(b.Dx(), b.Dy(), req.Width, req.Height)
	return cropAndResize(img, r, req.Width, req.Height)
}

// SmartCrop renders img for req: a face-aware crop when face data is
// present, a center crop otherwise, and a plain downscale when no crop is
// requested.
func SmartCrop(img image.Image, req CropRequest) image.Image {
	if !req.Crop {
		return fitWithin(img, req.Width, req.Height)
	}
	if out, ok := FaceAwareCrop(img, req); ok {
		return out
	}
	return CenterCrop(img, req)
}

func cropAndResize(img image.Image, r image.Rectangle, w, h int) image.Image {
	// crop rects are relative to the image origin
	cropped := imaging.Crop(img, r.Add(img.Bounds().Min))
	return imaging.Resize(cropped, w, h, imaging.Lanczos)
}

// fitWithin downscales img to fit w x h, where a zero side is unconstrained.
// images that already fit are returned as they are.
func fitWithin(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	switch {
	case w <= 0 && h <= 0:
		return img
	case h <= 0:
		if iw <= w {
			return img
		}
		return imaging.Resize(img, w, 0, imaging.Lanczos)
	case w <= 0:
		if ih <= h {
			return img
		}
		return imaging.Resize(img, 0, h, imaging.Lanczos)
	default:
		if iw <= w && ih <= h {
			return img
		}
		return imaging.Fit(img, w, h, imaging.Lanczos)
	}
}
