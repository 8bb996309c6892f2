package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"contactbook/backend/internal/model"
)

// MemoryStore is an in-memory implementation of both UserStore and
// ContactStore. It backs the tests in place of MySQL; holding both tables in
// one struct keeps the user→contact cascade a single-lock operation, mirroring
// the foreign key behavior of the real schema.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[uint64]model.User
	contacts      map[uint64]model.Contact
	nextUserID    uint64
	nextContactID uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uint64]model.User),
		contacts:      make(map[uint64]model.Contact),
		nextUserID:    1,
		nextContactID: 1,
	}
}

func (s *MemoryStore) Create(ctx context.Context, input CreateUserInput) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == input.Email {
			return 0, ErrDuplicateEmail
		}
	}

	id := s.nextUserID
	s.nextUserID++
	s.users[id] = model.User{
		ID:           id,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (s *MemoryStore) FindByID(ctx context.Context, id uint64) (model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.PublicUser{}, ErrUserNotFound
	}
	return u.Public(), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.PublicUser, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Public())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	for contactID, c := range s.contacts {
		if c.OwnerID == id {
			delete(s.contacts, contactID)
		}
	}
	return true, nil
}

func (s *MemoryStore) CountAdmins(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, u := range s.users {
		if u.Role == model.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PromoteToAdmin(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = model.RoleAdmin
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CreateContact(ctx context.Context, input CreateContactInput) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	id := s.nextContactID
	s.nextContactID++
	s.contacts[id] = model.Contact{
		ID:           id,
		OwnerID:      input.OwnerID,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		Category:     model.NormalizeCategory(input.Category),
		IsFavorite:   input.IsFavorite,
		Notes:        input.Notes,
		ProfileImage: input.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uint64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok {
		return model.Contact{}, ErrContactNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Contact, 0)
	for _, c := range s.contacts {
		if c.OwnerID == ownerID {
			items = append(items, c)
		}
	}
	sortContactsNewestFirst(items)
	return items, nil
}

func (s *MemoryStore) ListAllContacts(ctx context.Context) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		items = append(items, c)
	}
	sortContactsNewestFirst(items)
	return items, nil
}

func (s *MemoryStore) Update(ctx context.Context, id uint64, patch ContactPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Empty() {
		return false, nil
	}
	c, ok := s.contacts[id]
	if !ok {
		return false, nil
	}

	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	if patch.Address != nil {
		c.Address = *patch.Address
	}
	if patch.Category != nil {
		c.Category = model.NormalizeCategory(*patch.Category)
	}
	if patch.IsFavorite != nil {
		c.IsFavorite = *patch.IsFavorite
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	if patch.ProfileImage != nil {
		c.ProfileImage = *patch.ProfileImage
	}
	c.UpdatedAt = time.Now()
	s.contacts[id] = c
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return false, nil
	}
	delete(s.contacts, id)
	return true, nil
}

func (s *MemoryStore) ToggleFavorite(ctx context.Context, id uint64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok {
		return model.Contact{}, ErrContactNotFound
	}
	if c.IsFavorite == 1 {
		c.IsFavorite = 0
	} else {
		c.IsFavorite = 1
	}
	c.UpdatedAt = time.Now()
	s.contacts[id] = c
	return c, nil
}

func (s *MemoryStore) CountStats(ctx context.Context, ownerID uint64) (model.ContactStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.ContactStats{}
	for _, c := range s.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		stats.Total++
		if c.IsFavorite.Bool() {
			stats.Favorites++
		}
		switch c.Category {
		case model.CategoryWork:
			stats.Work++
		case model.CategoryPersonal:
			stats.Personal++
		}
	}
	return stats, nil
}

// Users returns the store's UserStore view. MemoryStore satisfies UserStore
// directly; the method exists for symmetry with Contacts.
func (s *MemoryStore) Users() UserStore { return s }

// Contacts adapts the store to ContactStore. Create and ListAll collide with
// the user-side method names, so a thin view type renames them.
func (s *MemoryStore) Contacts() ContactStore { return memoryContacts{s} }

type memoryContacts struct {
	*MemoryStore
}

func (m memoryContacts) Create(ctx context.Context, input CreateContactInput) (uint64, error) {
	return m.CreateContact(ctx, input)
}

func (m memoryContacts) ListAll(ctx context.Context) ([]model.Contact, error) {
	return m.ListAllContacts(ctx)
}

func sortContactsNewestFirst(items []model.Contact) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
