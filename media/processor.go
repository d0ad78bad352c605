package media

import (
	"fmt"
	"image"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	ThumbnailJpegQuality   = 90
	ThumbnailFileExtension = ".jpg"
)

// Rendition is a saved thumbnail
type Rendition struct {
	Alias  string
	Path   string
	Width  int
	Height int
}

// Processor renders and stores thumbnails and originals. it relies on a Store
// implementation for saving the results.
type Processor struct {
	store   Store
	aliases []ThumbnailAlias
}

func NewProcessor(store Store, aliases []ThumbnailAlias) *Processor {
	if len(aliases) == 0 {
		aliases = DefaultAliases
	}
	return &Processor{store: store, aliases: aliases}
}

func (p *Processor) Store() Store {
	return p.store
}

func (p *Processor) Aliases() []ThumbnailAlias {
	return p.aliases
}

// SaveOriginal stores an upload under a random name, keeping its extension
func (p *Processor) SaveOriginal(filename string, data io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedImageExtensions[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for original: %w", err)
	}
	relPath, err := p.store.Save(AssetTypeOriginal, "", id.String()+ext, data)
	if err != nil {
		return "", fmt.Errorf("failed to save original via store: %w", err)
	}
	return relPath, nil
}

// Render applies an alias to img without saving it
func (p *Processor) Render(img image.Image, alias ThumbnailAlias, face *FaceCenter) image.Image {
	return SmartCrop(img, alias.Request(face))
}

// GenerateThumbnail renders one alias and saves it as a JPEG under dirHint
func (p *Processor) GenerateThumbnail(img image.Image, alias ThumbnailAlias, face *FaceCenter, dirHint string) (Rendition, error) {
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return Rendition{}, fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}
	thumb := p.Render(img, alias, face)

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality))
		if err != nil {
			log.Printf("processor: failed to encode %s thumbnail: %v", alias.Name, err)
			writer.CloseWithError(fmt.Errorf("thumbnail encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	id, err := uuid.NewRandom()
	if err != nil {
		reader.Close()
		return Rendition{}, fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}

	relPath, err := p.store.Save(AssetTypeThumbnail, dirHint, alias.Name+"_"+id.String()+ThumbnailFileExtension, reader)
	if err != nil {
		reader.Close()
		return Rendition{}, fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	b := thumb.Bounds()
	return Rendition{Alias: alias.Name, Path: relPath, Width: b.Dx(), Height: b.Dy()}, nil
}

// GenerateAll renders every configured alias. it stops at the first failure
// and returns what was saved so far.
func (p *Processor) GenerateAll(img image.Image, face *FaceCenter, dirHint string) ([]Rendition, error) {
	out := make([]Rendition, 0, len(p.aliases))
	for _, alias := range p.aliases {
		r, err := p.GenerateThumbnail(img, alias, face, dirHint)
		if err != nil {
			return out, fmt.Errorf("alias %s: %w", alias.Name, err)
		}
		out = append(out, r)
	}
	log.Printf("processor: generated %d thumbnails in %s", len(out), dirHint)
	return out, nil
}
