package holiday

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
)

// Source provides the holiday calendar one year at a time.
type Source interface {
	HolidaysForYear(ctx context.Context, year int) ([]Holiday, error)
}

type pgxSource struct {
	pool *pgxpool.Pool
}

func NewPgxSource(pool *pgxpool.Pool) Source {
	return &pgxSource{pool: pool}
}

func (s *pgxSource) HolidaysForYear(ctx context.Context, year int) ([]Holiday, error) {
	if !validYear(year) {
		return nil, ErrInvalidYear
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := psql.Select("day", "name", "kind").
		From("public.holidays").
		Where(squirrel.GtOrEq{"day": from}).
		Where(squirrel.Lt{"day": from.AddDate(1, 0, 0)}).
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list holidays query failed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list holidays failed: %w", err)
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var day time.Time
		var h Holiday
		if err := rows.Scan(&day, &h.Name, &h.Kind); err != nil {
			return nil, fmt.Errorf("scan holiday failed: %w", err)
		}
		h.Date = interval.DayOf(day, time.UTC)
		out = append(out, h)
	}
	return out, rows.Err()
}

// memorySource serves a fixed holiday list.
type memorySource struct {
	mu     sync.RWMutex
	byYear map[int][]Holiday
}

func NewMemorySource(holidays ...Holiday) Source {
	s := &memorySource{byYear: make(map[int][]Holiday)}
	for _, h := range holidays {
		s.byYear[h.Date.Year] = append(s.byYear[h.Date.Year], h)
	}
	for _, list := range s.byYear {
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	}
	return s
}

func (s *memorySource) HolidaysForYear(ctx context.Context, year int) ([]Holiday, error) {
	if !validYear(year) {
		return nil, ErrInvalidYear
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Holiday(nil), s.byYear[year]...), nil
}

// Collect loads every year touched by days into one Set. Years that fail to load are
// skipped; the returned error joins their failures so callers can log and carry on.
func Collect(ctx context.Context, src Source, days []interval.Day) (Set, error) {
	set := make(Set)
	if src == nil {
		return set, nil
	}

	seen := make(map[int]bool)
	var errs []error
	for _, d := range days {
		if seen[d.Year] {
			continue
		}
		seen[d.Year] = true

		list, err := src.HolidaysForYear(ctx, d.Year)
		if err != nil {
			errs = append(errs, fmt.Errorf("holidays for %d: %w", d.Year, err))
			continue
		}
		for _, h := range list {
			set[h.Date] = h
		}
	}
	return set, errors.Join(errs...)
}
