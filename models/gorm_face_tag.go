package models

// FaceTagStatus is the review state of a tag
type FaceTagStatus string

const (
	FaceTagPending  FaceTagStatus = "pending"
	FaceTagApproved FaceTagStatus = "approved"
	FaceTagRejected FaceTagStatus = "rejected"
)

func (s FaceTagStatus) Valid() bool {
	switch s {
	case FaceTagPending, FaceTagApproved, FaceTagRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a review may move a tag from s to next.
// approved and rejected are terminal.
func (s FaceTagStatus) CanTransitionTo(next FaceTagStatus) bool {
	return s == FaceTagPending && (next == FaceTagApproved || next == FaceTagRejected)
}

// FaceTag links a face region of an image to a person. the box is normalized
// with a top-left origin.
type FaceTag struct {
	ID       uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageID  uint  `gorm:"not null;index" json:"image_id"`
	PersonID *uint `gorm:"index" json:"person_id"`

	FaceX      float64 `gorm:"not null" json:"face_x"`
	FaceY      float64 `gorm:"not null" json:"face_y"`
	FaceWidth  float64 `gorm:"not null" json:"face_width"`
	FaceHeight float64 `gorm:"not null" json:"face_height"`

	FaceEncoding    []byte        `gorm:"column:face_encoding" json:"-"`
	Status          FaceTagStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	ConfidenceScore float64       `gorm:"not null;default:0" json:"confidence_score"`
	IsAutoGenerated bool          `gorm:"not null;default:false" json:"is_auto_generated"`

	TaggedByID   *uint  `gorm:"index" json:"tagged_by_id,omitempty"`
	ReviewedByID *uint  `json:"reviewed_by_id,omitempty"`
	ReviewedAt   *int64 `json:"reviewed_at,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
	UpdatedAt int64 `gorm:"not null" json:"updated_at"`

	Image    *Image  `gorm:"foreignKey:ImageID" json:"-"`
	Person   *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
	TaggedBy *User   `gorm:"foreignKey:TaggedByID" json:"-"`
}

func (FaceTag) TableName() string {
	return "face_tags"
}

func (t *FaceTag) HasEncoding() bool {
	return len(t.FaceEncoding) > 0
}

func (t *FaceTag) Encoding() ([]float64, error) {
	return DecodeEncoding(t.FaceEncoding)
}

func (t *FaceTag) SetEncoding(enc []float64) {
	t.FaceEncoding = EncodeEncoding(enc)
}

// PersonName is empty for unassigned tags or when Person was not preloaded
func (t *FaceTag) PersonName() string {
	if t.Person == nil {
		return ""
	}
	return t.Person.Name
}
