package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// PhotoMetadata is what the metadata task stores on an image row. every field
// is optional because most uploads carry partial or no EXIF data.
type PhotoMetadata struct {
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Orientation  *int     `json:"orientation,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed *string  `json:"shutter_speed,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	CameraMake   *string  `json:"camera_make,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	TakenAt      *int64   `json:"taken_at,omitempty"`
}

// ReadPhotoMetadata opens path and extracts dimensions and EXIF fields
func ReadPhotoMetadata(path string) (*PhotoMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open %s: %w", path, err)
	}
	defer f.Close()
	return DecodePhotoMetadata(f)
}

// DecodePhotoMetadata reads dimensions from the image header, then rewinds and
// decodes EXIF. an image without EXIF is not an error.
func DecodePhotoMetadata(r io.ReadSeeker) (*PhotoMetadata, error) {
	meta := &PhotoMetadata{}

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: unrecognized image: %w", err)
	}
	w, h := cfg.Width, cfg.Height
	meta.Width, meta.Height = &w, &h

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("metadata: failed to rewind: %w", err)
	}

	x, err := exif.Decode(r)
	if err != nil {
		log.Printf("metadata: no EXIF in %s image: %v", format, err)
		return meta, nil
	}

	meta.Orientation = exifInt(x, exif.Orientation)
	meta.Aperture = exifRational(x, exif.FNumber)
	meta.ShutterSpeed = exifExposure(x)
	meta.ISO = exifInt(x, exif.ISOSpeedRatings)
	meta.FocalLength = exifRational(x, exif.FocalLength)
	meta.CameraMake = exifString(x, exif.Make)
	meta.CameraModel = exifString(x, exif.Model)
	if dt, err := x.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta, nil
}

func exifRational(x *exif.Exif, name exif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// some cameras write these as plain integers
		if v, err := tag.Int(0); err == nil {
			f := float64(v)
			return &f
		}
		return nil
	}
	f := float64(num) / float64(den)
	return &f
}

func exifInt(x *exif.Exif, name exif.FieldName) *int {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &v
}

func exifString(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil {
		s = tag.String()
	}
	s = strings.TrimSpace(strings.Trim(strings.TrimRight(s, "\x00"), `"`))
	if s == "" {
		return nil
	}
	return &s
}

func exifExposure(x *exif.Exif) *string {
	tag, err := x.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	var s string
	switch v := float64(num) / float64(den); {
	case num == 1 && den > 1:
		s = fmt.Sprintf("1/%d", den)
	case v >= 1:
		s = fmt.Sprintf("%.1fs", v)
	default:
		s = fmt.Sprintf("%.4fs", v)
	}
	return &s
}
