package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

const (
	hallID = "7f6d2f5e-1b7c-4c39-9a51-3a4c1f0e2b11"
	projID = "0c1b9d1e-5a3f-4b8e-8d1f-2e7a6c5b4d22"
	r1ID   = "b3c2a1d0-9e8f-4a7b-8c6d-5e4f3a2b1c33"
)

func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resources := resource.NewService(resource.NewMemoryRepository(
		&resource.Resource{ID: hallID, Kind: resource.KindVenue, Name: "Hall", TotalQuantity: 1},
		&resource.Resource{ID: projID, Kind: resource.KindEquipment, Name: "Projector", TotalQuantity: 5},
	))
	repo := reservation.NewMemoryRepository(&reservation.Reservation{
		ID:            r1ID,
		Items:         []reservation.Item{{ResourceID: hallID, Quantity: 1}},
		StartTime:     at(2, 9),
		EndTime:       at(2, 11),
		Status:        reservation.StatusReserved,
		RequesterRole: "faculty",
		RequesterID:   "u1",
	})
	holidays := holiday.NewMemorySource(holiday.Holiday{Date: interval.Day{Year: 2026, Month: time.March, Day: 6}, Name: "Founders Day"})
	svc := booking.NewService(repo, resources, holidays, nil, booking.Options{
		Clock: func() time.Time { return at(1, 7) },
	})

	// Identity comes from headers in tests instead of a signed token.
	fakeAuth := func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-User"))
		c.Set("userRole", c.GetHeader("X-Role"))
		c.Set("userAdmin", c.GetHeader("X-Admin") == "1")
		c.Next()
	}

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc), fakeAuth)
	return r
}

func do(r *gin.Engine, method, path, user, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	req.Header.Set("X-Role", role)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func attemptBody(start, end time.Time, confirm bool, resources ...ResourceRequestBody) AttemptRequest {
	return AttemptRequest{Resources: resources, StartTime: start, EndTime: end, Title: "Assembly", ConfirmOverride: confirm}
}

func TestCreateDeniedForEqualRank(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodPost, "/v1/bookings", "u2", "staff",
		attemptBody(at(2, 10), at(2, 12), false, ResourceRequestBody{ResourceID: hallID}))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "priority_denied", resp.Kind)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "faculty", details["blocking_role"])
}

func TestCreateOverrideFlow(t *testing.T) {
	r := setupRouter(t)
	body := attemptBody(at(2, 10), at(2, 12), false, ResourceRequestBody{ResourceID: hallID})

	w := do(r, http.MethodPost, "/v1/bookings", "u3", "School Head", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	var pending DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, "NEEDS_CONFIRMATION", pending.Outcome)
	require.Len(t, pending.Conflicts, 1)
	assert.Equal(t, r1ID, pending.Conflicts[0].ReservationID)
	assert.Equal(t, "OVERLAP_END", pending.Conflicts[0].OverlapKind)

	body.ConfirmOverride = true
	w = do(r, http.MethodPost, "/v1/bookings", "u3", "School Head", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var done DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	assert.Equal(t, "ALLOWED", done.Outcome)
	assert.Equal(t, []string{r1ID}, done.Cancelled)
	require.NotNil(t, done.Booking)
	assert.Equal(t, "reserved", done.Booking.Status)
	assert.Equal(t, "u3", done.Booking.RequesterID)
}

func TestCreateValidation(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantKind string
	}{
		{"malformed", map[string]any{"resources": "hall"}, http.StatusBadRequest, "validation"},
		{"non uuid resource", attemptBody(at(2, 12), at(2, 13), false, ResourceRequestBody{ResourceID: "hall"}), http.StatusBadRequest, "validation"},
		{"inverted", attemptBody(at(2, 13), at(2, 12), false, ResourceRequestBody{ResourceID: hallID}), http.StatusBadRequest, "validation"},
		{"holiday", attemptBody(at(6, 9), at(6, 10), false, ResourceRequestBody{ResourceID: hallID}), http.StatusBadRequest, "validation"},
		{"capacity", attemptBody(at(2, 12), at(2, 13), false, ResourceRequestBody{ResourceID: projID, Quantity: 9}), http.StatusConflict, "capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/v1/bookings", "u2", "faculty", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantKind, resp.Kind)
		})
	}
}

func TestCheckDoesNotCommit(t *testing.T) {
	r := setupRouter(t)
	body := attemptBody(at(2, 8), at(2, 12), false, ResourceRequestBody{ResourceID: hallID})

	w := do(r, http.MethodPost, "/v1/bookings/check", "u2", "coo", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Conflicts []ConflictResponse `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "COMPLETE_OVERLAP", resp.Conflicts[0].OverlapKind)

	w = do(r, http.MethodGet, "/v1/bookings/"+r1ID, "u1", "faculty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var b BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "reserved", b.Status)
}

func TestAvailability(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/availability?resource_ids="+hallID+"&from=2026-03-01&to=2026-03-06", "u1", "faculty", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Days map[string]string `json:"days"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "partial", resp.Days["2026-03-02"])
	assert.Equal(t, "available", resp.Days["2026-03-03"])
	assert.Equal(t, "holiday", resp.Days["2026-03-06"])
	assert.Len(t, resp.Days, 6)

	w = do(r, http.MethodGet, "/v1/availability?resource_ids="+hallID+"&from=2026-03-06&to=bad", "u1", "faculty", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/availability?resource_ids="+hallID+",hall&from=2026-03-01&to=2026-03-06", "u1", "faculty", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resource ids must be UUIDs")
}

func TestGetAndCancelPermissions(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/bookings/"+r1ID, "u2", "dean", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/v1/bookings/"+r1ID+"/cancel", "u2", "dean", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/v1/bookings/"+r1ID+"/cancel", "u1", "faculty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var b BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "cancelled", b.Status)

	w = do(r, http.MethodPost, "/v1/bookings/"+r1ID+"/cancel", "u1", "faculty", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/v1/bookings/not-a-uuid", "u1", "faculty", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScopesToRequester(t *testing.T) {
	r := setupRouter(t)

	w := do(r, http.MethodGet, "/v1/bookings?requester_id=u1", "u2", "dean", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page response.PageResponse[BookingResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 0, page.Total)

	w = do(r, http.MethodGet, "/v1/bookings", "u1", "faculty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}
