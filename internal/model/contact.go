package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	CategoryPersonal = "personal"
	CategoryWork     = "work"
)

type Contact struct {
	ID           uint64       `json:"id"`
	OwnerID      uint64       `json:"user_id"`
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	Category     string       `json:"category"`
	IsFavorite   FavoriteFlag `json:"is_favorite"`
	Notes        string       `json:"notes,omitempty"`
	ProfileImage string       `json:"profile_image,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type ContactStats struct {
	Total     int64 `json:"total"`
	Favorites int64 `json:"favorites"`
	Work      int64 `json:"work"`
	Personal  int64 `json:"personal"`
}

// FavoriteFlag is the stored 0/1 form of the favorite marker. Clients have
// historically sent it as a boolean, a number, or the strings "true"/"1", so
// every write path funnels through ParseFavorite and the flag itself accepts
// all three shapes when decoding JSON.
type FavoriteFlag int

func (f FavoriteFlag) Bool() bool { return f == 1 }

func (f *FavoriteFlag) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	flag, err := ParseFavorite(raw)
	if err != nil {
		return err
	}
	*f = flag
	return nil
}

// ParseFavorite normalizes any accepted favorite representation to 0 or 1.
// Unrecognized values are an input error, not a silent false.
func ParseFavorite(raw interface{}) (FavoriteFlag, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		if v == 0 {
			return 0, nil
		}
		if v == 1 {
			return 1, nil
		}
		return 0, fmt.Errorf("is_favorite must be 0 or 1, got %v", v)
	case int:
		return ParseFavorite(float64(v))
	case FavoriteFlag:
		return ParseFavorite(float64(v))
	case string:
		return parseFavoriteString(v)
	default:
		return 0, fmt.Errorf("is_favorite has unsupported type %T", raw)
	}
}

func parseFavoriteString(raw string) (FavoriteFlag, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false":
		return 0, nil
	case "1", "true":
		return 1, nil
	default:
		return 0, fmt.Errorf("is_favorite must be a boolean, 0/1, or \"true\"/\"false\", got %q", raw)
	}
}

// FavoriteStored reports whether a raw stored value counts as favorited. The
// read path scans the column through a string destination, so it recognizes
// the same shapes the write path accepts before normalizing.
func FavoriteStored(raw interface{}) bool {
	flag, err := ParseFavorite(raw)
	return err == nil && flag == 1
}

// NormalizeCategory applies the storage default for blank categories.
func NormalizeCategory(raw string) string {
	category := strings.TrimSpace(raw)
	if category == "" {
		return CategoryPersonal
	}
	return category
}

func ValidateContactName(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// ParseOwnerID re-validates an owner identity delivered over a trust boundary.
// Token transports hand ids over as strings, so the defensive parse lives here.
func ParseOwnerID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("owner id must be a positive integer")
	}
	return id, nil
}
