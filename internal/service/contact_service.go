package service

import (
	"context"
	"strings"

	"contactbook/backend/internal/model"
	"contactbook/backend/internal/repository"
)

// Actor is the authenticated identity a request acts as. The transport layer
// builds it from verified token claims; the service still treats a
// non-positive id as malformed input.
type Actor struct {
	ID    uint64
	Email string
	Role  model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

type CreateContactInput struct {
	Name         string
	Email        string
	Phone        string
	Address      string
	Category     string
	IsFavorite   model.FavoriteFlag
	Notes        string
	ProfileImage string
}

type ContactService struct {
	contacts repository.ContactStore
}

func NewContactService(contacts repository.ContactStore) *ContactService {
	return &ContactService{contacts: contacts}
}

// authorize resolves the target before checking ownership: a missing contact
// is reported as not-found to every caller, owner or not. Admins skip the
// ownership comparison but never the existence check.
func (s *ContactService) authorize(ctx context.Context, actor Actor, contactID uint64) (model.Contact, error) {
	if err := validateActor(actor); err != nil {
		return model.Contact{}, err
	}
	contact, err := s.contacts.GetByID(ctx, contactID)
	if err != nil {
		return model.Contact{}, err
	}
	if !actor.IsAdmin() && contact.OwnerID != actor.ID {
		return model.Contact{}, ErrForbidden
	}
	return contact, nil
}

func (s *ContactService) Create(ctx context.Context, actor Actor, input CreateContactInput) (model.Contact, error) {
	if err := validateActor(actor); err != nil {
		return model.Contact{}, err
	}
	name := strings.TrimSpace(input.Name)
	if err := model.ValidateContactName(name); err != nil {
		return model.Contact{}, invalidInput(err.Error())
	}

	id, err := s.contacts.Create(ctx, repository.CreateContactInput{
		OwnerID:      actor.ID,
		Name:         name,
		Email:        strings.TrimSpace(input.Email),
		Phone:        strings.TrimSpace(input.Phone),
		Address:      strings.TrimSpace(input.Address),
		Category:     model.NormalizeCategory(input.Category),
		IsFavorite:   input.IsFavorite,
		Notes:        input.Notes,
		ProfileImage: input.ProfileImage,
	})
	if err != nil {
		return model.Contact{}, err
	}
	return s.contacts.GetByID(ctx, id)
}

func (s *ContactService) Get(ctx context.Context, actor Actor, contactID uint64) (model.Contact, error) {
	return s.authorize(ctx, actor, contactID)
}

func (s *ContactService) ListMine(ctx context.Context, actor Actor) ([]model.Contact, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	return s.contacts.ListByOwner(ctx, actor.ID)
}

// ListAll returns every contact in the store. Role enforcement happens at the
// transport layer; this is the admin surface only.
func (s *ContactService) ListAll(ctx context.Context) ([]model.Contact, error) {
	return s.contacts.ListAll(ctx)
}

// Update applies a partial patch after the ownership guard passes. The second
// return value is false when the patch carried no fields; the row is left
// untouched in that case.
func (s *ContactService) Update(ctx context.Context, actor Actor, contactID uint64, patch repository.ContactPatch) (model.Contact, bool, error) {
	current, err := s.authorize(ctx, actor, contactID)
	if err != nil {
		return model.Contact{}, false, err
	}
	if patch.Empty() {
		return current, false, nil
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if err := model.ValidateContactName(trimmed); err != nil {
			return model.Contact{}, false, invalidInput(err.Error())
		}
		patch.Name = &trimmed
	}

	updated, err := s.contacts.Update(ctx, contactID, patch)
	if err != nil {
		return model.Contact{}, false, err
	}
	if !updated {
		// Row vanished between the guard and the write.
		return model.Contact{}, false, repository.ErrContactNotFound
	}
	contact, err := s.contacts.GetByID(ctx, contactID)
	if err != nil {
		return model.Contact{}, false, err
	}
	return contact, true, nil
}

func (s *ContactService) Delete(ctx context.Context, actor Actor, contactID uint64) error {
	if _, err := s.authorize(ctx, actor, contactID); err != nil {
		return err
	}
	deleted, err := s.contacts.Delete(ctx, contactID)
	if err != nil {
		return err
	}
	if !deleted {
		return repository.ErrContactNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite flag through the store's atomic toggle and
// returns the refreshed record.
func (s *ContactService) ToggleFavorite(ctx context.Context, actor Actor, contactID uint64) (model.Contact, error) {
	if _, err := s.authorize(ctx, actor, contactID); err != nil {
		return model.Contact{}, err
	}
	return s.contacts.ToggleFavorite(ctx, contactID)
}

func validateActor(actor Actor) error {
	if actor.ID == 0 {
		return invalidInput("invalid user id")
	}
	return nil
}
