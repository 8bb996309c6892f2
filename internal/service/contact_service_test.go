package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"contactbook/backend/internal/model"
	"contactbook/backend/internal/repository"
)

func newContactFixture(t *testing.T) (*ContactService, *repository.MemoryStore, Actor, Actor, Actor) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewContactService(store.Contacts())

	owner := createTestUser(t, store, "Ann", "ann@x.com", model.RoleUser)
	other := createTestUser(t, store, "Eve", "eve@x.com", model.RoleUser)
	admin := createTestUser(t, store, "Root", "root@x.com", model.RoleAdmin)
	return svc, store, owner, other, admin
}

func createTestUser(t *testing.T, store *repository.MemoryStore, name, email string, role model.Role) Actor {
	t.Helper()
	id, err := store.Users().Create(context.Background(), repository.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
	})
	require.NoError(t, err)
	return Actor{ID: id, Email: email, Role: role}
}

func TestListMineScopedToOwner(t *testing.T) {
	svc, _, owner, other, _ := newContactFixture(t)
	ctx := context.Background()

	mine, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, CreateContactInput{Name: "Mallory"})
	require.NoError(t, err)

	list, err := svc.ListMine(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine.ID, list[0].ID)
	require.Equal(t, owner.ID, list[0].OwnerID)
}

func TestGuardExistenceBeforeOwnership(t *testing.T) {
	svc, _, owner, other, admin := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)

	// Existing contact, non-owner, non-admin: forbidden.
	_, err = svc.Get(ctx, other, contact.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// Missing contact is not-found for every caller, owner or stranger alike.
	const missing = 9999
	for _, actor := range []Actor{owner, other, admin} {
		_, err = svc.Get(ctx, actor, missing)
		require.ErrorIs(t, err, repository.ErrContactNotFound, "actor=%s", actor.Email)
	}
}

func TestAdminBypassesOwnershipOnly(t *testing.T) {
	svc, _, owner, _, admin := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, admin, contact.ID)
	require.NoError(t, err)
	require.Equal(t, contact.ID, got.ID)

	require.NoError(t, svc.Delete(ctx, admin, contact.ID))
	_, err = svc.Get(ctx, admin, contact.ID)
	require.ErrorIs(t, err, repository.ErrContactNotFound)
}

func TestCreateRequiresName(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)

	_, err := svc.Create(context.Background(), owner, CreateContactInput{Name: "   "})
	require.True(t, IsValidation(err))
}

func TestCreateDefaultsCategory(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)

	contact, err := svc.Create(context.Background(), owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)
	require.Equal(t, model.CategoryPersonal, contact.Category)
	require.Equal(t, model.FavoriteFlag(0), contact.IsFavorite)
}

func TestUpdateEmptyPatchIsNoOp(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob", Phone: "123"})
	require.NoError(t, err)

	got, updated, err := svc.Update(ctx, owner, contact.ID, repository.ContactPatch{})
	require.NoError(t, err)
	require.False(t, updated)
	require.Equal(t, "Bob", got.Name)
	require.Equal(t, "123", got.Phone)
}

func TestUpdatePartialLeavesOtherFields(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob", Phone: "123", Notes: "old pal"})
	require.NoError(t, err)

	phone := "555"
	got, updated, err := svc.Update(ctx, owner, contact.ID, repository.ContactPatch{Phone: &phone})
	require.NoError(t, err)
	require.True(t, updated)
	require.Equal(t, "555", got.Phone)
	require.Equal(t, "Bob", got.Name)
	require.Equal(t, "old pal", got.Notes)
	require.Equal(t, owner.ID, got.OwnerID)
}

func TestUpdateRejectsBlankName(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)

	blank := "  "
	_, _, err = svc.Update(ctx, owner, contact.ID, repository.ContactPatch{Name: &blank})
	require.True(t, IsValidation(err))
}

func TestUpdateForbiddenForNonOwner(t *testing.T) {
	svc, _, owner, other, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)

	phone := "555"
	_, _, err = svc.Update(ctx, other, contact.ID, repository.ContactPatch{Phone: &phone})
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, svc.Delete(ctx, other, contact.ID), ErrForbidden)
	_, err = svc.ToggleFavorite(ctx, other, contact.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	svc, _, owner, _, _ := newContactFixture(t)
	ctx := context.Background()

	contact, err := svc.Create(ctx, owner, CreateContactInput{Name: "Bob"})
	require.NoError(t, err)
	require.False(t, contact.IsFavorite.Bool())

	flipped, err := svc.ToggleFavorite(ctx, owner, contact.ID)
	require.NoError(t, err)
	require.True(t, flipped.IsFavorite.Bool())

	restored, err := svc.ToggleFavorite(ctx, owner, contact.ID)
	require.NoError(t, err)
	require.False(t, restored.IsFavorite.Bool())
}

func TestInvalidActorRejected(t *testing.T) {
	svc, _, _, _, _ := newContactFixture(t)
	ctx := context.Background()

	var zero Actor
	_, err := svc.Create(ctx, zero, CreateContactInput{Name: "Bob"})
	require.True(t, IsValidation(err))

	_, err = svc.ListMine(ctx, zero)
	require.True(t, IsValidation(err))

	_, err = svc.Get(ctx, zero, 1)
	require.True(t, IsValidation(err))
}

func TestValidationErrorIdentity(t *testing.T) {
	err := invalidInput("boom")
	require.True(t, IsValidation(err))
	require.Equal(t, "boom", err.Error())
	require.False(t, IsValidation(errors.New("boom")))
}
