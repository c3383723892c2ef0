package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	bookingHttp "github.com/nekogravitycat/reservation-engine/internal/booking/http"
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	resourceHttp "github.com/nekogravitycat/reservation-engine/internal/resource/http"
)

type testApp struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := NewContainer(Config{
		JWTSecret: "test-secret",
		JWTTTL:    30 * time.Minute,
		Clock:     func() time.Time { return time.Date(2026, time.March, 1, 7, 0, 0, 0, time.UTC) },
		SeedHolidays: []holiday.Holiday{
			{Date: interval.Day{Year: 2026, Month: time.March, Day: 6}, Name: "Founders Day", Kind: "regular"},
		},
	})
	require.NoError(t, err)
	return &testApp{router: c.Router, jwt: c.JWTManager}
}

func (a *testApp) token(t *testing.T, id, role string, admin bool) string {
	t.Helper()
	token, err := a.jwt.GenerateAccessToken(auth.Identity{UserID: id, Email: id + "@campus.edu", Role: role, Admin: admin})
	require.NoError(t, err)
	return token
}

func (a *testApp) executeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) createResource(t *testing.T, adminToken string, body resourceHttp.CreateRequest) string {
	t.Helper()
	w := a.executeRequest(http.MethodPost, "/v1/resources", body, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res resourceHttp.ResourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.ID
}

func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)

	w := a.executeRequest(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = a.executeRequest(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = a.executeRequest(http.MethodGet, "/v1/bookings", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestBookingLifecycle(t *testing.T) {
	a := newTestApp(t)

	adminToken := a.token(t, "admin", "staff", true)
	facultyToken := a.token(t, "faculty-1", "faculty", false)
	deanToken := a.token(t, "dean-1", "Dean", false)
	cooToken := a.token(t, "coo-1", "COO", false)

	hallID := a.createResource(t, adminToken, resourceHttp.CreateRequest{Name: "Main Hall", Kind: "venue"})
	projID := a.createResource(t, adminToken, resourceHttp.CreateRequest{Name: "Projector", Kind: "equipment", TotalQuantity: 3})

	// Non-admins cannot grow the inventory.
	w := a.executeRequest(http.MethodPost, "/v1/resources", resourceHttp.CreateRequest{Name: "Van", Kind: "vehicle"}, facultyToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	var facultyBookingID string

	t.Run("Faculty books the hall and two projectors", func(t *testing.T) {
		body := bookingHttp.AttemptRequest{
			Resources: []bookingHttp.ResourceRequestBody{
				{ResourceID: hallID},
				{ResourceID: projID, Quantity: 2},
			},
			StartTime: at(2, 9),
			EndTime:   at(2, 11),
			Title:     "Lecture",
		}
		w := a.executeRequest(http.MethodPost, "/v1/bookings", body, facultyToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp bookingHttp.DecisionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Booking)
		assert.Equal(t, "ALLOWED", resp.Outcome)
		assert.Equal(t, "faculty", resp.Booking.RequesterRole)
		facultyBookingID = resp.Booking.ID
	})

	t.Run("Projector pool has one unit left", func(t *testing.T) {
		body := bookingHttp.AttemptRequest{
			Resources: []bookingHttp.ResourceRequestBody{{ResourceID: projID, Quantity: 2}},
			StartTime: at(2, 10),
			EndTime:   at(2, 12),
		}
		w := a.executeRequest(http.MethodPost, "/v1/bookings", body, facultyToken)
		require.Equal(t, http.StatusConflict, w.Code)

		var resp response.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "capacity", resp.Kind)
		details := resp.Details.(map[string]any)
		assert.EqualValues(t, 1, details["max_available"])

		body.Resources[0].Quantity = 1
		w = a.executeRequest(http.MethodPost, "/v1/bookings", body, facultyToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("Dean overrides faculty after confirmation", func(t *testing.T) {
		body := bookingHttp.AttemptRequest{
			Resources: []bookingHttp.ResourceRequestBody{{ResourceID: hallID}},
			StartTime: at(2, 10),
			EndTime:   at(2, 12),
		}
		w := a.executeRequest(http.MethodPost, "/v1/bookings", body, deanToken)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		body.ConfirmOverride = true
		w = a.executeRequest(http.MethodPost, "/v1/bookings", body, deanToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp bookingHttp.DecisionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{facultyBookingID}, resp.Cancelled)

		w = a.executeRequest(http.MethodGet, "/v1/bookings/"+facultyBookingID, nil, facultyToken)
		require.Equal(t, http.StatusOK, w.Code)
		var old bookingHttp.BookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &old))
		assert.Equal(t, "cancelled", old.Status)
	})

	t.Run("Faculty cannot bump the dean", func(t *testing.T) {
		body := bookingHttp.AttemptRequest{
			Resources: []bookingHttp.ResourceRequestBody{{ResourceID: hallID}},
			StartTime: at(2, 11),
			EndTime:   at(2, 13),
		}
		w := a.executeRequest(http.MethodPost, "/v1/bookings", body, facultyToken)
		require.Equal(t, http.StatusConflict, w.Code)
		var resp response.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "priority_denied", resp.Kind)
	})

	t.Run("COO bumps everyone on the hall", func(t *testing.T) {
		body := bookingHttp.AttemptRequest{
			Resources:       []bookingHttp.ResourceRequestBody{{ResourceID: hallID}},
			StartTime:       at(2, 8),
			EndTime:         at(2, 17),
			ConfirmOverride: true,
		}
		w := a.executeRequest(http.MethodPost, "/v1/bookings", body, cooToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("Availability reflects the full-day booking and the holiday", func(t *testing.T) {
		path := "/v1/availability?resource_ids=" + hallID + "&from=2026-03-02&to=2026-03-06"
		w := a.executeRequest(http.MethodGet, path, nil, facultyToken)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Days map[string]string `json:"days"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "reserved", resp.Days["2026-03-02"])
		assert.Equal(t, "available", resp.Days["2026-03-03"])
		assert.Equal(t, "holiday", resp.Days["2026-03-06"])
	})

	t.Run("Holidays endpoint lists the seeded holiday", func(t *testing.T) {
		w := a.executeRequest(http.MethodGet, "/v1/holidays?year=2026", nil, facultyToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Founders Day")
	})

	t.Run("Admin lists every booking, faculty only their own", func(t *testing.T) {
		var page response.PageResponse[bookingHttp.BookingResponse]

		w := a.executeRequest(http.MethodGet, "/v1/bookings?page_size=50", nil, adminToken)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 4, page.Total)

		w = a.executeRequest(http.MethodGet, "/v1/bookings?status=reserved", nil, facultyToken)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 1, page.Total)
	})

	t.Run("Decisions are counted", func(t *testing.T) {
		w := a.executeRequest(http.MethodGet, "/metrics", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.True(t, strings.Contains(body, `booking_decisions_total{outcome="ALLOWED"}`), body)
		assert.Contains(t, body, "booking_overrides_total 2")
	})
}

func TestWindowsAndRanksFromConfig(t *testing.T) {
	w, err := WindowsFromConfig("06:00-20:00", "09:00-18:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00-18:00", w.For("venue").String())
	assert.Equal(t, "06:00-20:00", w.For("driver").String())

	_, err = WindowsFromConfig("20:00-06:00", "09:00-18:00")
	assert.Error(t, err)

	table, err := RanksFromConfig("", "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, table.RankOf("coo"))

	table, err = RanksFromConfig("v2", "coo=9,dean=1")
	require.NoError(t, err)
	assert.Equal(t, "v2", table.Version)
	assert.EqualValues(t, 9, table.RankOf("COO"))
	assert.EqualValues(t, 0, table.RankOf("faculty"))
}
