package priority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-engine/internal/conflict"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
)

func record(id, role string) *conflict.Record {
	return &conflict.Record{
		Reservation: &reservation.Reservation{ID: id, RequesterRole: role, Status: reservation.StatusReserved},
		Kind:        interval.OverlapEnd,
		ResourceIDs: []string{"hall"},
	}
}

func TestRankOf(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		role string
		want Rank
	}{
		{"COO", 4},
		{"School Head", 3},
		{"school-head", 3},
		{"Dean", 2},
		{"CSG", 2},
		{"SBO President", 2},
		{"faculty", 1},
		{" Staff ", 1},
		{"student", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.want, table.RankOf(tt.role))
		})
	}
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable("v2", "coo=5, Registrar=3,faculty=1")
	require.NoError(t, err)
	assert.Equal(t, "v2", table.Version)
	assert.Equal(t, Rank(3), table.RankOf("registrar"))
	assert.Equal(t, Rank(0), table.RankOf("dean"))
	assert.Equal(t, []Role{"coo", "registrar", "faculty"}, table.Roles())

	for _, bad := range []string{"", "coo", "coo=high", "=3", "coo=-1"} {
		_, err := ParseTable("v", bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveScenarios(t *testing.T) {
	table := DefaultTable()
	existing := []*conflict.Record{record("r1", "faculty")}

	// Equal rank is denied.
	d := table.Resolve(existing, "staff")
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "faculty", d.BlockingRole)
	assert.Equal(t, Rank(1), d.BlockingRank)

	// A higher rank may bump.
	d = table.Resolve(existing, "school_head")
	assert.Equal(t, AllowWithOverride, d.Outcome)
	assert.Equal(t, existing, d.Conflicts)
	assert.Empty(t, d.BlockingRole)

	d = table.Resolve(nil, "student")
	assert.Equal(t, Allow, d.Outcome)
}

func TestResolveNamesHighestBlocker(t *testing.T) {
	table := DefaultTable()
	list := []*conflict.Record{record("a", "faculty"), record("b", "coo"), record("c", "dean")}

	d := table.Resolve(list, "dean")
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "coo", d.BlockingRole)
	assert.Equal(t, Rank(4), d.BlockingRank)
}

func TestResolveIsMonotonic(t *testing.T) {
	table := DefaultTable()
	list := []*conflict.Record{record("a", "faculty"), record("b", "dean")}
	order := map[Outcome]int{Deny: 0, AllowWithOverride: 1, Allow: 2}

	prev := -1
	for _, role := range []string{"student", "staff", "dean", "school_head", "coo"} {
		got := order[table.Resolve(list, role).Outcome]
		assert.GreaterOrEqual(t, got, prev, role)
		prev = got
	}
}

type fakeWriter struct {
	failOn    string
	cancelled []string
	created   []*reservation.Reservation
}

func (f *fakeWriter) SetStatus(ctx context.Context, id string, status reservation.Status) error {
	if id == f.failOn {
		return errors.New("store unavailable")
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeWriter) Create(ctx context.Context, r *reservation.Reservation) error {
	r.ID = "new"
	f.created = append(f.created, r)
	return nil
}

func TestOverrideCancelsThenCreates(t *testing.T) {
	w := &fakeWriter{}
	d := DefaultTable().Resolve([]*conflict.Record{record("a", "faculty"), record("b", "staff")}, "coo")
	next := &reservation.Reservation{StartTime: time.Now(), EndTime: time.Now().Add(time.Hour), Status: reservation.StatusReserved}

	cancelled, err := Override(context.Background(), w, d, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cancelled)
	assert.Equal(t, []string{"a", "b"}, w.cancelled)
	require.Len(t, w.created, 1)
	assert.Equal(t, "new", next.ID)
}

func TestOverrideStopsOnFailedCancel(t *testing.T) {
	w := &fakeWriter{failOn: "b"}
	d := DefaultTable().Resolve([]*conflict.Record{record("a", "faculty"), record("b", "staff"), record("c", "staff")}, "coo")

	_, err := Override(context.Background(), w, d, &reservation.Reservation{})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, w.cancelled)
	assert.Empty(t, w.created)
}

func TestOverrideRejectsDeny(t *testing.T) {
	w := &fakeWriter{}
	d := DefaultTable().Resolve([]*conflict.Record{record("a", "coo")}, "faculty")

	_, err := Override(context.Background(), w, d, &reservation.Reservation{})
	assert.Error(t, err)
	assert.Empty(t, w.cancelled)
}

func TestOverrideRollsBackInMemoryStore(t *testing.T) {
	ctx := context.Background()
	repo := reservation.NewMemoryRepository(
		&reservation.Reservation{ID: "a", RequesterRole: "faculty", Status: reservation.StatusReserved},
		&reservation.Reservation{ID: "b", RequesterRole: "staff", Status: reservation.StatusCancelled},
	)
	d := DefaultTable().Resolve([]*conflict.Record{record("a", "faculty"), record("b", "staff")}, "coo")

	err := repo.WithinTx(ctx, func(tx reservation.Tx) error {
		_, err := Override(ctx, tx, d, &reservation.Reservation{Status: reservation.StatusReserved})
		return err
	})
	require.ErrorIs(t, err, reservation.ErrStatusTransition)

	a, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusReserved, a.Status)

	_, total, err := repo.List(ctx, reservation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
