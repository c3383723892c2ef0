package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/lock"
)

// Reader exposes the read side of the reservation store.
type Reader interface {
	// ListForResources returns every reservation holding at least one of resourceIDs.
	// When span is non-nil only reservations intersecting it are returned.
	ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error)
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
}

// Writer mutates reservations. It is only handed out inside WithinTx.
type Writer interface {
	SetStatus(ctx context.Context, id string, status Status) error
	Create(ctx context.Context, r *Reservation) error
}

// Tx is the view of the store inside WithinTx. Lock, reads and writes share one
// connection, so a reservation committed by an earlier holder of the same keys
// is visible to ListForResources once Lock returns.
type Tx interface {
	Writer
	// Lock holds keys until the transaction ends. It fails with lock.ErrBusy
	// when another transaction keeps them past the wait bound.
	Lock(ctx context.Context, keys []string) error
	ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error)
}

type Repository interface {
	Reader
	// WithinTx runs fn as one atomic unit: either every write made through tx is
	// kept or none is.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

var sortColumns = map[string]string{
	"start_time": "r.start_time",
	"end_time":   "r.end_time",
	"created_at": "r.created_at",
	"status":     "r.status",
}

var reservationColumns = []string{
	"r.id", "r.start_time", "r.end_time", "r.status", "r.requester_role", "r.requester_id",
	"r.title", "r.description", "r.created_at", "r.updated_at",
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxRepository struct {
	pool     *pgxpool.Pool
	lockWait time.Duration
}

// NewPgxRepository returns the Postgres store. lockWait bounds Tx.Lock; zero
// means lock.DefaultAdvisoryWait.
func NewPgxRepository(pool *pgxpool.Pool, lockWait time.Duration) Repository {
	return &pgxRepository{pool: pool, lockWait: lockWait}
}

func psql() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// WithinTx runs at READ COMMITTED: conflicting writers are kept apart by the
// advisory locks taken through Tx.Lock, and every statement after Lock sees rows
// committed before it.
func (r *pgxRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgxWriter{db: tx, lockWait: r.lockWait})
	})
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsTransactionRollback(pgErr.Code) {
		return ErrTxConflict.WithCause(err)
	}
	return err
}

func (r *pgxRepository) ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error) {
	return listForResources(ctx, r.pool, resourceIDs, span)
}

func listForResources(ctx context.Context, db querier, resourceIDs []string, span *interval.Interval) ([]*Reservation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	query := psql().Select(reservationColumns...).
		From("public.reservations r").
		Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM public.reservation_items i WHERE i.reservation_id = r.id AND i.resource_id = ANY(?::uuid[]))",
			resourceIDs,
		))
	if span != nil {
		// Half-open intersection: start < spanEnd AND end > spanStart
		query = query.
			Where(squirrel.Lt{"r.start_time": span.End}).
			Where(squirrel.Gt{"r.end_time": span.Start})
	}
	query = query.OrderBy("r.start_time ASC", "r.id ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list reservations for resources query failed: %w", err)
	}

	out, err := scanReservations(ctx, db, sql, args)
	if err != nil {
		return nil, err
	}
	return out, loadItems(ctx, db, out)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return getByID(ctx, r.pool, id, false)
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	query := psql().Select(append(reservationColumns, "count(*) OVER() as total_count")...).
		From("public.reservations r")

	if filter.RequesterID != "" {
		query = query.Where(squirrel.Eq{"r.requester_id": filter.RequesterID})
	}
	if filter.ResourceID != "" {
		query = query.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM public.reservation_items i WHERE i.reservation_id = r.id AND i.resource_id = ?)",
			filter.ResourceID,
		))
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"r.status": filter.Status})
	}
	// Date range filtering (intersection logic)
	if filter.StartTime != nil {
		query = query.Where(squirrel.Gt{"r.end_time": *filter.StartTime})
	}
	if filter.EndTime != nil {
		query = query.Where(squirrel.Lt{"r.start_time": *filter.EndTime})
	}

	// Sorting
	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "r.start_time"
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
		return nil, 0, fmt.Errorf("build list reservations query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	var total int
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(
			&res.ID, &res.StartTime, &res.EndTime, &res.Status, &res.RequesterRole, &res.RequesterID,
			&res.Title, &res.Description, &res.CreatedAt, &res.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan reservation failed: %w", err)
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}

	return out, total, loadItems(ctx, r.pool, out)
}

// pgxWriter performs writes inside a transaction.
type pgxWriter struct {
	db       querier
	lockWait time.Duration
}

func (w *pgxWriter) Lock(ctx context.Context, keys []string) error {
	return lock.AdvisoryXact(ctx, w.db, keys, w.lockWait)
}

func (w *pgxWriter) ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error) {
	return listForResources(ctx, w.db, resourceIDs, span)
}

func (w *pgxWriter) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	current, err := getByID(ctx, w.db, id, true)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(status) {
		return ErrStatusTransition
	}

	query, args, err := psql().Update("public.reservations").
		Set("status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reservation status query failed: %w", err)
	}

	ct, err := w.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update reservation status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (w *pgxWriter) Create(ctx context.Context, res *Reservation) error {
	query, args, err := psql().Insert("public.reservations").
		Columns("start_time", "end_time", "status", "requester_role", "requester_id", "title", "description").
		Values(res.StartTime, res.EndTime, res.Status, res.RequesterRole, res.RequesterID, res.Title, res.Description).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	if err := w.db.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return fmt.Errorf("create reservation failed: %w", err)
	}

	if len(res.Items) == 0 {
		return nil
	}

	insert := psql().Insert("public.reservation_items").
		Columns("reservation_id", "resource_id", "quantity")
	for _, it := range res.Items {
		insert = insert.Values(res.ID, it.ResourceID, it.Quantity)
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation items query failed: %w", err)
	}
	if _, err := w.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create reservation items failed: %w", err)
	}
	return nil
}

func getByID(ctx context.Context, db querier, id string, forUpdate bool) (*Reservation, error) {
	query := psql().Select(reservationColumns...).
		From("public.reservations r").
		Where(squirrel.Eq{"r.id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	out, err := scanReservations(ctx, db, sql, args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	if err := loadItems(ctx, db, out); err != nil {
		return nil, err
	}
	return out[0], nil
}

func scanReservations(ctx context.Context, db querier, sql string, args []any) ([]*Reservation, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations failed: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(
			&res.ID, &res.StartTime, &res.EndTime, &res.Status, &res.RequesterRole, &res.RequesterID,
			&res.Title, &res.Description, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation failed: %w", err)
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query reservations failed: %w", err)
	}
	return out, nil
}

func loadItems(ctx context.Context, db querier, reservations []*Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	byID := make(map[string]*Reservation, len(reservations))
	ids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	query, args, err := psql().Select("reservation_id", "resource_id", "quantity").
		From("public.reservation_items").
		Where(squirrel.Eq{"reservation_id": ids}).
		OrderBy("resource_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build load reservation items query failed: %w", err)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load reservation items failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reservationID string
		var it Item
		if err := rows.Scan(&reservationID, &it.ResourceID, &it.Quantity); err != nil {
			return fmt.Errorf("scan reservation item failed: %w", err)
		}
		if r, ok := byID[reservationID]; ok {
			r.Items = append(r.Items, it)
		}
	}
	return rows.Err()
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
