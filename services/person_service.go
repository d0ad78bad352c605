package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/permissions"
	"github.com/camden-git/mediasysfaces/repository"
)

// PersonService manages people. anyone signed in may create one; renaming and
// deleting is left to the creator or a person manager.
type PersonService struct {
	people repository.PersonRepositoryInterface
}

func NewPersonService(people repository.PersonRepositoryInterface) *PersonService {
	return &PersonService{people: people}
}

func (s *PersonService) Create(ctx context.Context, actor *models.User, name string) (*models.Person, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("name is required")
	}
	person := &models.Person{Name: name, CreatedByID: &actor.ID}
	if err := s.people.Create(ctx, person); err != nil {
		return nil, err
	}
	return person, nil
}

func (s *PersonService) List(ctx context.Context) ([]models.Person, error) {
	return s.people.ListAll(ctx)
}

func (s *PersonService) Get(ctx context.Context, id uint) (*models.Person, error) {
	person, err := s.people.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("person %d", id)
		}
		return nil, err
	}
	return person, nil
}

func (s *PersonService) Rename(ctx context.Context, actor *models.User, id uint, name string) (*models.Person, error) {
	if _, err := s.modifiable(ctx, actor, id); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("name is required")
	}
	if err := s.people.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *PersonService) Delete(ctx context.Context, actor *models.User, id uint) error {
	if _, err := s.modifiable(ctx, actor, id); err != nil {
		return err
	}
	return s.people.Delete(ctx, id)
}

func (s *PersonService) modifiable(ctx context.Context, actor *models.User, id uint) (*models.Person, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	person, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	createdBy := person.CreatedByID != nil && *person.CreatedByID == actor.ID
	if !createdBy && !actor.HasGlobalPermission(permissions.PersonManage) {
		return nil, ErrForbidden
	}
	return person, nil
}
