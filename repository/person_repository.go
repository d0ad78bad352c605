package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
)

type PersonRepository struct {
	DB *gorm.DB
}

func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	person.Name = strings.TrimSpace(person.Name)
	if person.Name == "" {
		return errors.New("person name cannot be empty")
	}
	if err := r.DB.WithContext(ctx).Create(person).Error; err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.Name, err)
	}
	return nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id uint) (*models.Person, error) {
	var person models.Person
	err := r.DB.WithContext(ctx).First(&person, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	return &person, nil
}

// ListAll returns everyone in natural name order ("Anna 2" before "Anna 10")
func (r *PersonRepository) ListAll(ctx context.Context) ([]models.Person, error) {
	var people []models.Person
	if err := r.DB.WithContext(ctx).Find(&people).Error; err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	sortPeople(people)
	return people, nil
}

// ListWithEncoding returns the people that can be suggested, in id order
func (r *PersonRepository) ListWithEncoding(ctx context.Context) ([]models.Person, error) {
	var people []models.Person
	err := r.DB.WithContext(ctx).Where("face_encoding IS NOT NULL").Order("id ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people with encodings: %w", err)
	}
	return people, nil
}

func (r *PersonRepository) Rename(ctx context.Context, id uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("person name cannot be empty")
	}
	result := r.DB.WithContext(ctx).Model(&models.Person{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       name,
		"updated_at": time.Now().Unix(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to rename person %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetCanonicalEncodingIfEmpty writes enc only when the person has none yet.
// the conditional update makes concurrent first writers race safely: exactly
// one of them reports true.
func (r *PersonRepository) SetCanonicalEncodingIfEmpty(ctx context.Context, id uint, enc []float64) (bool, error) {
	if len(enc) == 0 {
		return false, nil
	}
	result := r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("id = ? AND face_encoding IS NULL", id).
		Updates(map[string]interface{}{
			"face_encoding": models.EncodeEncoding(enc),
			"updated_at":    time.Now().Unix(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to set canonical encoding for person %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *PersonRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FaceTag{}).Where("person_id = ?", id).Update("person_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach face tags from person %d: %w", id, err)
		}
		result := tx.Delete(&models.Person{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete person ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func sortPeople(people []models.Person) {
	sort.SliceStable(people, func(i, j int) bool {
		a, b := strings.ToLower(people[i].Name), strings.ToLower(people[j].Name)
		if a == b {
			return people[i].ID < people[j].ID
		}
		return natsort.Compare(a, b)
	})
}
