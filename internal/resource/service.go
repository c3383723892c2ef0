package resource

import (
	"context"
	"strings"
)

type CreateRequest struct {
	Name          string
	Kind          string
	TotalQuantity int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, id string) (*Resource, error)
	// GetByIDs returns resources in the order requested and fails with ErrNotFound
	// if any id is unknown.
	GetByIDs(ctx context.Context, ids []string) ([]*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	// Only equipment is pooled; everything else is a single unit.
	qty := req.TotalQuantity
	if kind.Pooled() {
		if qty < 1 {
			return nil, ErrInvalidQuantity
		}
	} else {
		if qty > 1 {
			return nil, ErrInvalidQuantity
		}
		qty = 1
	}

	res := &Resource{
		Name:          strings.TrimSpace(req.Name),
		Kind:          kind,
		TotalQuantity: qty,
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByIDs(ctx context.Context, ids []string) ([]*Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	out := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	return s.repo.List(ctx, filter)
}
