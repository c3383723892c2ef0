package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/calendar"
	"github.com/nekogravitycat/reservation-engine/internal/conflict"
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/lock"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/metrics"
	"github.com/nekogravitycat/reservation-engine/internal/priority"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

const (
	lockPrefix   = "resource:"
	maxRangeDays = 366
)

// errNoCommit rolls back a transaction whose decision does not write anything.
var errNoCommit = errors.New("decision does not commit")

type Service interface {
	// GetAvailability colors every day from first to last for the resource set.
	GetAvailability(ctx context.Context, resourceIDs []string, first, last interval.Day) (map[interval.Day]calendar.Status, error)
	// CheckConflicts validates the attempt and lists what stands in its way without committing.
	CheckConflicts(ctx context.Context, attempt Attempt) ([]*conflict.Record, error)
	// ResolveAndMaybeCommit validates, detects, decides and, when allowed, commits the attempt
	// while holding the lock of every requested resource.
	ResolveAndMaybeCommit(ctx context.Context, attempt Attempt) (*Result, error)
	GetByID(ctx context.Context, id string) (*reservation.Reservation, error)
	List(ctx context.Context, filter reservation.Filter) ([]*reservation.Reservation, int, error)
	Cancel(ctx context.Context, id string, actor Actor) (*reservation.Reservation, error)
}

type Options struct {
	Windows  resource.Windows
	Location *time.Location
	Ranks    priority.Table
	Clock    func() time.Time
	Logger   *logger.Logger
	Metrics  *metrics.BookingMetrics
}

type service struct {
	repo       reservation.Repository
	resService resource.Service
	holidays   holiday.Source
	locker     lock.Locker

	windows    resource.Windows
	loc        *time.Location
	ranks      priority.Table
	clock      func() time.Time
	logg       *logger.Logger
	metrics    *metrics.BookingMetrics
	detector   conflict.Detector
	classifier calendar.Classifier
}

func NewService(
	repo reservation.Repository,
	resService resource.Service,
	holidays holiday.Source,
	locker lock.Locker,
	opts Options,
) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Windows.Default == (interval.Window{}) {
		opts.Windows = resource.DefaultWindows()
	}
	if opts.Ranks.Version == "" {
		opts.Ranks = priority.DefaultTable()
	}
	if locker == nil {
		locker = lock.NewKeyedLocker()
	}
	return &service{
		repo:       repo,
		resService: resService,
		holidays:   holidays,
		locker:     locker,
		windows:    opts.Windows,
		loc:        opts.Location,
		ranks:      opts.Ranks,
		clock:      opts.Clock,
		logg:       opts.Logger,
		metrics:    opts.Metrics,
		detector:   conflict.NewDetector(opts.Windows, opts.Location),
		classifier: calendar.NewClassifier(opts.Windows, opts.Location),
	}
}

// prepared is a validated attempt.
type prepared struct {
	attempt  Attempt
	span     interval.Interval
	requests []conflict.Request
	ids      []string
}

func (s *service) GetAvailability(ctx context.Context, resourceIDs []string, first, last interval.Day) (map[interval.Day]calendar.Status, error) {
	if last.Before(first) || first.AddDays(maxRangeDays).Before(last) {
		return nil, ErrInvalidDateRange
	}

	set, err := s.loadResources(ctx, resourceIDs)
	if err != nil {
		return nil, err
	}

	span := interval.Interval{Start: first.Start(s.loc), End: last.Next().Start(s.loc)}
	existing, err := s.repo.ListForResources(ctx, resourceIDs, &span)
	if err != nil {
		return nil, err
	}

	days := interval.Days(span, s.loc)
	holidays := s.holidaySet(ctx, days)

	return s.classifier.ClassifyRange(first, last, set, existing, holidays, s.clock()), nil
}

func (s *service) CheckConflicts(ctx context.Context, attempt Attempt) ([]*conflict.Record, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveCheck("check", time.Since(started)) }()

	p, err := s.prepare(ctx, attempt)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, p)
}

func (s *service) ResolveAndMaybeCommit(ctx context.Context, attempt Attempt) (*Result, error) {
	started := time.Now()

	p, err := s.prepare(ctx, attempt)
	if err != nil {
		s.metrics.IncDecision("INVALID")
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"requester_id":   attempt.RequesterID,
		"requester_role": attempt.RequesterRole,
		"resource_ids":   p.ids,
		"start_time":     p.span.Start,
		"end_time":       p.span.End,
	})

	keys := lock.Keys(lockPrefix, p.ids)
	release, err := s.locker.Lock(ctx, keys)
	if err != nil {
		s.lockFailed(ctx, "commit", err)
		return nil, err
	}
	defer release()

	var (
		records   []*conflict.Record
		decision  priority.Decision
		decided   bool
		cancelled []string
		lockErr   error
	)
	next := p.reservation()
	err = s.repo.WithinTx(ctx, func(tx reservation.Tx) error {
		if lockErr = tx.Lock(ctx, keys); lockErr != nil {
			return lockErr
		}

		existing, err := tx.ListForResources(ctx, p.ids, &p.span)
		if err != nil {
			return err
		}
		records = s.detector.Detect(p.span, p.requests, existing)
		decision = s.ranks.Resolve(records, attempt.RequesterRole)
		decided = true
		s.metrics.ObserveCheck("resolve", time.Since(started))

		if decision.Outcome == priority.Deny ||
			(decision.Outcome == priority.AllowWithOverride && !attempt.ConfirmOverride) {
			return errNoCommit
		}
		cancelled, err = priority.Override(ctx, tx, decision, next)
		return err
	})

	if lockErr != nil {
		s.lockFailed(ctx, "commit", lockErr)
		return nil, lockErr
	}
	if err != nil && !decided {
		s.logg.Error(ctx, "conflict detection failed", err)
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"decision":       string(decision.Outcome),
		"conflict_count": len(records),
		"priority_table": s.ranks.Version,
	})

	switch {
	case decision.Outcome == priority.Deny:
		s.metrics.IncDecision(string(OutcomeDenied))
		s.logg.Info(s.logg.WithField(ctx, "blocking_role", decision.BlockingRole), "booking denied")
		return nil, s.denyError(decision)

	case errors.Is(err, errNoCommit):
		s.metrics.IncDecision(string(OutcomeNeedsConfirmation))
		s.logg.Info(ctx, "booking needs override confirmation")
		return &Result{Outcome: OutcomeNeedsConfirmation, Conflicts: records}, nil

	case err != nil:
		s.metrics.IncTxFailure(string(decision.Outcome))
		s.logg.Error(ctx, "booking commit rolled back", err)
		if apperror.KindOf(err) == apperror.KindTransaction {
			return nil, err
		}
		return nil, ErrCommitFailed.WithCause(err)
	}

	s.metrics.IncDecision(string(OutcomeAllowed))
	if len(cancelled) > 0 {
		s.metrics.IncOverride(len(cancelled))
		ctx = s.logg.WithField(ctx, "cancelled_ids", cancelled)
	}
	s.logg.Info(s.logg.WithField(ctx, "reservation_id", next.ID), "booking committed")

	return &Result{
		Outcome:     OutcomeAllowed,
		Reservation: next,
		Conflicts:   records,
		Cancelled:   cancelled,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, reservation.ErrNotFound) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *service) List(ctx context.Context, filter reservation.Filter) ([]*reservation.Reservation, int, error) {
	if filter.StartTime != nil && filter.EndTime != nil && !filter.StartTime.Before(*filter.EndTime) {
		return nil, 0, ErrInvalidTimeRange
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Cancel(ctx context.Context, id string, actor Actor) (*reservation.Reservation, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Permission Check Logic:
	// 1. System Admin -> Allowed
	// 2. Owner of Booking -> Allowed
	if !actor.Admin && r.RequesterID != actor.ID {
		return nil, ErrPermissionDenied
	}
	if r.Status == reservation.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	keys := lock.Keys(lockPrefix, r.ResourceIDs())
	release, err := s.locker.Lock(ctx, keys)
	if err != nil {
		s.lockFailed(ctx, "cancel", err)
		return nil, err
	}
	defer release()

	var lockErr error
	err = s.repo.WithinTx(ctx, func(tx reservation.Tx) error {
		if lockErr = tx.Lock(ctx, keys); lockErr != nil {
			return lockErr
		}
		return tx.SetStatus(ctx, id, reservation.StatusCancelled)
	})
	switch {
	case lockErr != nil:
		s.lockFailed(ctx, "cancel", lockErr)
		return nil, lockErr
	case errors.Is(err, reservation.ErrStatusTransition):
		return nil, ErrAlreadyCancelled
	case err != nil:
		s.metrics.IncTxFailure("cancel")
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"reservation_id": id,
		"actor_id":       actor.ID,
	}), "booking cancelled")

	return s.GetByID(ctx, id)
}

// prepare runs every validation that must pass before conflicts are looked at.
func (s *service) prepare(ctx context.Context, attempt Attempt) (*prepared, error) {
	if len(attempt.Resources) == 0 {
		return nil, ErrNoResources
	}
	span, err := interval.New(attempt.StartTime, attempt.EndTime)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}

	ids := make([]string, 0, len(attempt.Resources))
	seen := make(map[string]bool, len(attempt.Resources))
	for _, r := range attempt.Resources {
		if seen[r.ResourceID] {
			return nil, ErrDuplicateResource
		}
		seen[r.ResourceID] = true
		ids = append(ids, r.ResourceID)
	}

	resources, err := s.loadResources(ctx, ids)
	if err != nil {
		return nil, err
	}

	requests := make([]conflict.Request, len(resources))
	for i, res := range resources {
		qty := 1
		if res.Kind.Pooled() {
			qty = attempt.Resources[i].Quantity
			if qty < 1 {
				return nil, ErrInvalidQuantity
			}
			if qty > res.Capacity() {
				return nil, capacityError(res.ID, qty, res.Capacity())
			}
		}
		requests[i] = conflict.Request{Resource: res, Quantity: qty}
	}

	for _, res := range resources {
		w := s.windows.For(res.Kind)
		if !w.Contains(span, s.loc) {
			return nil, apperror.Derive(ErrOutsideBusinessHours,
				fmt.Sprintf("%s bookings must start and end between %s", res.Kind, w), nil)
		}
	}

	if span.Start.Before(s.clock()) {
		return nil, ErrStartTimePast
	}

	days := interval.Days(span, s.loc)
	holidays := s.holidaySet(ctx, days)
	for _, d := range days {
		if h, ok := holidays.Lookup(d); ok {
			return nil, apperror.Derive(ErrHoliday,
				fmt.Sprintf("cannot book on %s (%s)", d, h.Name), map[string]string{"date": d.String(), "name": h.Name})
		}
	}

	return &prepared{
		attempt:  attempt,
		span:     span,
		requests: requests,
		ids:      ids,
	}, nil
}

func (s *service) detect(ctx context.Context, p *prepared) ([]*conflict.Record, error) {
	existing, err := s.repo.ListForResources(ctx, p.ids, &p.span)
	if err != nil {
		return nil, err
	}
	return s.detector.Detect(p.span, p.requests, existing), nil
}

// lockFailed counts and logs an attempt that never got hold of its resources.
func (s *service) lockFailed(ctx context.Context, op string, err error) {
	s.metrics.IncTxFailure("lock")
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"operation": op,
		"error":     err.Error(),
	}), "resource lock not acquired")
}

func (s *service) loadResources(ctx context.Context, ids []string) ([]*resource.Resource, error) {
	list, err := s.resService.GetByIDs(ctx, ids)
	if errors.Is(err, resource.ErrNotFound) {
		return nil, ErrResourceNotFound
	}
	return list, err
}

// holidaySet never fails: an unreachable holiday source means no holidays are known.
func (s *service) holidaySet(ctx context.Context, days []interval.Day) holiday.Set {
	set, err := holiday.Collect(ctx, s.holidays, days)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "holiday lookup failed, assuming no holidays")
	}
	return set
}

// denyError explains a DENY decision. Exclusive conflicts are reported as a priority
// denial naming the blocking role; a denial made only of pooled shortfalls is a capacity error.
func (s *service) denyError(d priority.Decision) error {
	ids := make([]string, 0, len(d.Conflicts))
	exclusive := false
	for _, c := range d.Conflicts {
		ids = append(ids, c.Reservation.ID)
		if c.Exclusive() && s.ranks.RankOf(c.Reservation.RequesterRole) >= d.RequesterRank {
			exclusive = true
		}
	}

	if !exclusive {
		if shorts := conflict.Shortfalls(d.Conflicts); len(shorts) > 0 {
			return capacityError(shorts[0].ResourceID, shorts[0].Requested, shorts[0].Available)
		}
	}

	return apperror.Derive(ErrPriorityDenied,
		fmt.Sprintf("time slot is held by a booking of %s, which ranks at or above yours", d.BlockingRole),
		DenyDetails{
			BlockingRole:  d.BlockingRole,
			BlockingRank:  int(d.BlockingRank),
			RequesterRank: int(d.RequesterRank),
			Conflicts:     ids,
		})
}

func capacityError(resourceID string, requested, available int) error {
	return apperror.Derive(ErrCapacity,
		fmt.Sprintf("only %d unit(s) of resource %s are available", available, resourceID),
		CapacityDetails{ResourceID: resourceID, Requested: requested, MaxAvailable: available})
}

func (p *prepared) reservation() *reservation.Reservation {
	items := make([]reservation.Item, len(p.requests))
	for i, r := range p.requests {
		items[i] = reservation.Item{ResourceID: r.Resource.ID, Quantity: r.Quantity}
	}
	return &reservation.Reservation{
		Items:         items,
		StartTime:     p.span.Start,
		EndTime:       p.span.End,
		Status:        reservation.StatusReserved,
		RequesterRole: p.attempt.RequesterRole,
		RequesterID:   p.attempt.RequesterID,
		Title:         p.attempt.Title,
		Description:   p.attempt.Description,
	}
}
