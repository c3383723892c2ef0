package holiday

import (
	"net/http"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrInvalidYear = apperror.New(http.StatusBadRequest, "year must be between 1970 and 9999")
)

// Holiday is a non-bookable calendar day.
type Holiday struct {
	Date interval.Day
	Name string
	Kind string // e.g. regular, special, school
}

// Set indexes holidays by day.
type Set map[interval.Day]Holiday

func NewSet(holidays ...[]Holiday) Set {
	s := make(Set)
	for _, list := range holidays {
		for _, h := range list {
			s[h.Date] = h
		}
	}
	return s
}

// Lookup returns the holiday on d, if any.
func (s Set) Lookup(d interval.Day) (Holiday, bool) {
	h, ok := s[d]
	return h, ok
}

func validYear(year int) bool {
	return year >= 1970 && year <= 9999
}
