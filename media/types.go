package media

type AssetType string

const (
	AssetTypeOriginal  AssetType = "original"
	AssetTypeThumbnail AssetType = "thumbnail"
)

// ThumbnailAlias is a named rendition served for every image
type ThumbnailAlias struct {
	Name   string
	Width  int
	Height int // 0 preserves aspect ratio
	Crop   bool
}

const (
	AliasSmall  = "small"
	AliasMedium = "medium"
	AliasLarge  = "large"
	AliasBanner = "banner"
)

// DefaultAliases are the renditions generated by the thumbnail task
var DefaultAliases = []ThumbnailAlias{
	{Name: AliasSmall, Width: 160, Height: 160, Crop: true},
	{Name: AliasMedium, Width: 300, Height: 300, Crop: true},
	{Name: AliasLarge, Width: 1200, Height: 0, Crop: false},
	{Name: AliasBanner, Width: 1200, Height: 400, Crop: true},
}

// LookupAlias finds an alias by name
func LookupAlias(aliases []ThumbnailAlias, name string) (ThumbnailAlias, bool) {
	for _, a := range aliases {
		if a.Name == name {
			return a, true
		}
	}
	return ThumbnailAlias{}, false
}

// Request turns the alias into a crop request for the given face data
func (a ThumbnailAlias) Request(face *FaceCenter) CropRequest {
	return CropRequest{Width: a.Width, Height: a.Height, Crop: a.Crop, Face: face}
}
