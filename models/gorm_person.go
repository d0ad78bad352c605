package models

// Person is a named identity faces can be tagged with. FaceEncoding is the
// canonical encoding used for suggestions; it is written once, by the first
// approved or manually created tag that carries an encoding.
type Person struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null;index" json:"name"`
	CreatedByID  *uint  `gorm:"index" json:"created_by_id,omitempty"`
	FaceEncoding []byte `gorm:"column:face_encoding" json:"-"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"`
	UpdatedAt    int64  `gorm:"not null" json:"updated_at"`

	FaceTags []FaceTag `gorm:"foreignKey:PersonID;constraint:OnDelete:SET NULL" json:"face_tags,omitempty"`
}

func (Person) TableName() string {
	return "people"
}

func (p *Person) HasEncoding() bool {
	return len(p.FaceEncoding) > 0
}

func (p *Person) Encoding() ([]float64, error) {
	return DecodeEncoding(p.FaceEncoding)
}

func (p *Person) SetEncoding(enc []float64) {
	p.FaceEncoding = EncodeEncoding(enc)
}
