package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
}

var sortColumns = map[string]string{
	"created_at":     "created_at",
	"name":           "name",
	"kind":           "kind",
	"total_quantity": "total_quantity",
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.resources").
		Columns("kind", "name", "total_quantity").
		Values(res.Kind, res.Name, res.TotalQuantity).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt); err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "kind", "name", "total_quantity", "created_at").
		From("public.resources").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	var res Resource
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&res.ID, &res.Kind, &res.Name, &res.TotalQuantity, &res.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return &res, nil
}

func (r *pgxRepository) GetByIDs(ctx context.Context, ids []string) ([]*Resource, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "kind", "name", "total_quantity", "created_at").
		From("public.resources").
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resources query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get resources failed: %w", err)
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Kind, &res.Name, &res.TotalQuantity, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resource failed: %w", err)
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select("id", "kind", "name", "total_quantity", "created_at", "count(*) OVER() as total_count").
		From("public.resources")

	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if len(filter.IDs) > 0 {
		query = query.Where(squirrel.Eq{"id": filter.IDs})
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	orderDir := "DESC"
	if strings.EqualFold(filter.SortOrder, "ASC") {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	// Pagination
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query = query.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		var res Resource
		if err := rows.Scan(
			&res.ID, &res.Kind, &res.Name, &res.TotalQuantity, &res.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, &res)
	}

	return result, total, rows.Err()
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}

// memoryRepository keeps resources in process, for tests and single-node runs.
type memoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*Resource
	clock func() time.Time
}

func NewMemoryRepository(seed ...*Resource) Repository {
	r := &memoryRepository{
		byID:  make(map[string]*Resource),
		clock: time.Now,
	}
	for _, res := range seed {
		cp := *res
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		r.byID[cp.ID] = &cp
	}
	return r
}

func (r *memoryRepository) Create(ctx context.Context, res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res.ID = uuid.NewString()
	res.CreatedAt = r.clock().UTC()
	cp := *res
	r.byID[res.ID] = &cp
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memoryRepository) GetByIDs(ctx context.Context, ids []string) ([]*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Resource
	for _, id := range ids {
		if res, ok := r.byID[id]; ok {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}

	var all []*Resource
	for _, res := range r.byID {
		if filter.Kind != "" && string(res.Kind) != filter.Kind {
			continue
		}
		if len(wanted) > 0 && !wanted[res.ID] {
			continue
		}
		cp := *res
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
