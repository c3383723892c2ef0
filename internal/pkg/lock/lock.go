// Package lock serializes booking attempts per resource.
package lock

import (
	"context"
	"net/http"
	"sort"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var ErrBusy = apperror.NewKind(http.StatusServiceUnavailable, apperror.KindTransaction, "resource is busy, please retry")

// Release frees every key taken by a successful Lock. It is safe to call more than once.
type Release func()

// Locker takes exclusive hold of a set of keys.
// Implementations acquire keys in sorted order so overlapping sets cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys []string) (Release, error)
}

// Keys returns the sorted, deduplicated lock keys for resource ids.
func Keys(prefix string, ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		k := prefix + id
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func noop() {}
