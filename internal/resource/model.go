package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "resource not found")
	ErrEmptyName       = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidKind     = apperror.New(http.StatusBadRequest, "kind must be one of venue, vehicle, equipment, driver")
	ErrInvalidQuantity = apperror.New(http.StatusBadRequest, "total quantity must be at least 1 for equipment and exactly 1 otherwise")
)

// Kind is the category of a bookable resource.
type Kind string

const (
	KindVenue     Kind = "venue"
	KindVehicle   Kind = "vehicle"
	KindEquipment Kind = "equipment"
	KindDriver    Kind = "driver"
)

// ValidKinds lists every accepted kind.
var ValidKinds = []Kind{KindVenue, KindVehicle, KindEquipment, KindDriver}

func (k Kind) Valid() bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Pooled reports whether the kind is shared by quantity rather than held exclusively.
func (k Kind) Pooled() bool {
	return k == KindEquipment
}

// Resource represents a bookable unit (a venue, a vehicle, a driver, or a pool of equipment).
// Resources are immutable once created.
type Resource struct {
	ID            string
	Kind          Kind
	Name          string
	TotalQuantity int // Always 1 unless Kind is equipment
	CreatedAt     time.Time
}

// Capacity returns how many units may be held at once.
func (r *Resource) Capacity() int {
	if !r.Kind.Pooled() || r.TotalQuantity < 1 {
		return 1
	}
	return r.TotalQuantity
}

// Filter defines parameters for listing resources.
type Filter struct {
	Kind      string
	IDs       []string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Windows maps resource kinds to their configured business window.
type Windows struct {
	Default interval.Window
	ByKind  map[Kind]interval.Window
}

// DefaultWindows returns general scheduling hours of 05:00-19:00 with venues restricted to 08:00-17:00.
func DefaultWindows() Windows {
	return Windows{
		Default: interval.MustParseWindow("05:00-19:00"),
		ByKind: map[Kind]interval.Window{
			KindVenue: interval.MustParseWindow("08:00-17:00"),
		},
	}
}

// For returns the business window of kind.
func (w Windows) For(kind Kind) interval.Window {
	if win, ok := w.ByKind[kind]; ok {
		return win
	}
	return w.Default
}
