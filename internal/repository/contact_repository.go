package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"contactbook/backend/internal/model"
)

var ErrContactNotFound = errors.New("contact not found")

type CreateContactInput struct {
	OwnerID      uint64
	Name         string
	Email        string
	Phone        string
	Address      string
	Category     string
	IsFavorite   model.FavoriteFlag
	Notes        string
	ProfileImage string
}

// ContactPatch carries a partial update: only non-nil fields participate.
// Absent fields are left untouched, never reset to defaults.
type ContactPatch struct {
	Name         *string
	Email        *string
	Phone        *string
	Address      *string
	Category     *string
	IsFavorite   *model.FavoriteFlag
	Notes        *string
	ProfileImage *string
}

func (p ContactPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil &&
		p.Category == nil && p.IsFavorite == nil && p.Notes == nil && p.ProfileImage == nil
}

type ContactStore interface {
	Create(ctx context.Context, input CreateContactInput) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Contact, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Contact, error)
	ListAll(ctx context.Context) ([]model.Contact, error)
	Update(ctx context.Context, id uint64, patch ContactPatch) (bool, error)
	Delete(ctx context.Context, id uint64) (bool, error)
	ToggleFavorite(ctx context.Context, id uint64) (model.Contact, error)
	CountStats(ctx context.Context, ownerID uint64) (model.ContactStats, error)
}

type SQLContactStore struct {
	db *sql.DB
}

func NewSQLContactStore(db *sql.DB) *SQLContactStore {
	return &SQLContactStore{db: db}
}

const insertContactSQL = `
INSERT INTO contacts (owner_id, name, email, phone, address, category, is_favorite, notes, profile_image)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectContactSQL = `
SELECT id, owner_id, name, email, phone, address, category, is_favorite, notes, profile_image, created_at, updated_at
FROM contacts
`

// The favorite column is TINYINT(1) and every write path normalizes to 0/1,
// so all favorite SQL compares integers only. Text forms like 'true' must
// never appear in these statements: MySQL coerces a non-numeric string to the
// number 0 when comparing against an integer column, which would make the
// predicate match every non-favorite row.
const (
	toggleFavoriteSQL = `UPDATE contacts SET is_favorite = 1 - is_favorite, updated_at = NOW() WHERE id = ?`

	countContactsSQL  = `SELECT COUNT(1) FROM contacts WHERE owner_id = ?`
	countFavoritesSQL = `SELECT COUNT(1) FROM contacts WHERE owner_id = ? AND is_favorite = 1`
	countWorkSQL      = `SELECT COUNT(1) FROM contacts WHERE owner_id = ? AND category = 'work'`
	countPersonalSQL  = `SELECT COUNT(1) FROM contacts WHERE owner_id = ? AND category = 'personal'`
)

func (r *SQLContactStore) Create(ctx context.Context, input CreateContactInput) (uint64, error) {
	res, err := r.db.ExecContext(ctx, insertContactSQL,
		input.OwnerID,
		input.Name,
		nullable(input.Email),
		nullable(input.Phone),
		nullable(input.Address),
		model.NormalizeCategory(input.Category),
		int(input.IsFavorite),
		nullable(input.Notes),
		nullable(input.ProfileImage),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *SQLContactStore) GetByID(ctx context.Context, id uint64) (model.Contact, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectContactSQL+`WHERE id = ? LIMIT 1`, id))
}

func (r *SQLContactStore) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Contact, error) {
	return r.list(ctx, selectContactSQL+`WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *SQLContactStore) ListAll(ctx context.Context) ([]model.Contact, error) {
	return r.list(ctx, selectContactSQL+`ORDER BY created_at DESC, id DESC`)
}

// Update applies only the fields present in the patch. An empty patch is a
// no-op that reports false. The connection runs with clientFoundRows, so the
// affected count reflects matched rows and false means the row is gone, not
// that the supplied values happened to equal the stored ones.
func (r *SQLContactStore) Update(ctx context.Context, id uint64, patch ContactPatch) (bool, error) {
	assignments, args := buildContactPatchClause(patch)
	if len(assignments) == 0 {
		return false, nil
	}

	assignments = append(assignments, "updated_at = NOW()")
	args = append(args, id)

	query := "UPDATE contacts SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLContactStore) Delete(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ToggleFavorite flips the flag in a single UPDATE against current stored
// state, so two concurrent toggles on the same row serialize at the database
// instead of racing on a value read earlier in the request.
func (r *SQLContactStore) ToggleFavorite(ctx context.Context, id uint64) (model.Contact, error) {
	res, err := r.db.ExecContext(ctx, toggleFavoriteSQL, id)
	if err != nil {
		return model.Contact{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Contact{}, err
	}
	if affected == 0 {
		return model.Contact{}, ErrContactNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *SQLContactStore) CountStats(ctx context.Context, ownerID uint64) (model.ContactStats, error) {
	stats := model.ContactStats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{countContactsSQL, &stats.Total},
		{countFavoritesSQL, &stats.Favorites},
		{countWorkSQL, &stats.Work},
		{countPersonalSQL, &stats.Personal},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, ownerID).Scan(c.dest); err != nil {
			return model.ContactStats{}, err
		}
	}
	return stats, nil
}

func (r *SQLContactStore) list(ctx context.Context, query string, args ...interface{}) ([]model.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Contact, 0)
	for rows.Next() {
		item, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SQLContactStore) scanOne(row *sql.Row) (model.Contact, error) {
	contact, err := scanContact(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrContactNotFound
	}
	return contact, err
}

func scanContact(scan func(dest ...interface{}) error) (model.Contact, error) {
	contact := model.Contact{}
	var email, phone, address, notes, profileImage sql.NullString
	var favorite string

	err := scan(
		&contact.ID,
		&contact.OwnerID,
		&contact.Name,
		&email,
		&phone,
		&address,
		&contact.Category,
		&favorite,
		&notes,
		&profileImage,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return model.Contact{}, err
	}

	contact.Email = email.String
	contact.Phone = phone.String
	contact.Address = address.String
	contact.Notes = notes.String
	contact.ProfileImage = profileImage.String
	if model.FavoriteStored(favorite) {
		contact.IsFavorite = 1
	}
	return contact, nil
}

func buildContactPatchClause(patch ContactPatch) ([]string, []interface{}) {
	assignments := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	if patch.Name != nil {
		assignments = append(assignments, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Email != nil {
		assignments = append(assignments, "email = ?")
		args = append(args, nullable(*patch.Email))
	}
	if patch.Phone != nil {
		assignments = append(assignments, "phone = ?")
		args = append(args, nullable(*patch.Phone))
	}
	if patch.Address != nil {
		assignments = append(assignments, "address = ?")
		args = append(args, nullable(*patch.Address))
	}
	if patch.Category != nil {
		assignments = append(assignments, "category = ?")
		args = append(args, model.NormalizeCategory(*patch.Category))
	}
	if patch.IsFavorite != nil {
		assignments = append(assignments, "is_favorite = ?")
		args = append(args, int(*patch.IsFavorite))
	}
	if patch.Notes != nil {
		assignments = append(assignments, "notes = ?")
		args = append(args, nullable(*patch.Notes))
	}
	if patch.ProfileImage != nil {
		assignments = append(assignments, "profile_image = ?")
		args = append(args, nullable(*patch.ProfileImage))
	}
	return assignments, args
}

func nullable(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
