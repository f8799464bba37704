package locations

import (
	"errors"
	"strings"
	"time"
)

// Kind classifies a stock-holding site.
type Kind string

const (
	KindKitchen   Kind = "KITCHEN"
	KindStore     Kind = "STORE"
	KindWarehouse Kind = "WAREHOUSE"
)

// Location represents a physical stock-holding site.
type Location struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput captures validation rules for new locations.
type CreateInput struct {
	Code string
	Name string
	Kind Kind
}

// Validate ensures the input is coherent.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("locations: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("locations: name required")
	}
	switch in.Kind {
	case KindKitchen, KindStore, KindWarehouse:
		return nil
	default:
		return ErrInvalidKind
	}
}

// ErrInvalidKind indicates an unsupported location kind.
var ErrInvalidKind = errors.New("locations: invalid kind")

// ErrNotFound indicates the location does not exist.
var ErrNotFound = errors.New("locations: not found")

// ErrDuplicateCode indicates the code is already taken.
var ErrDuplicateCode = errors.New("locations: code already exists")
