package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ema-residences/service-reservation/internal/application"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	"github.com/ema-residences/service-reservation/internal/platform/auth"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReservationService struct {
	mock.Mock
}

func (m *mockReservationService) CreateReservationIdempotent(ctx context.Context, renterID uuid.UUID, key string, req application.CreateReservationRequest) (*application.ReservationDTO, bool, error) {
	args := m.Called(ctx, renterID, key, req)
	dto, _ := args.Get(0).(*application.ReservationDTO)
	return dto, args.Bool(1), args.Error(2)
}

func (m *mockReservationService) SetStatus(ctx context.Context, reservationID, callerID uuid.UUID, target string) (*application.ReservationDTO, error) {
	args := m.Called(ctx, reservationID, callerID, target)
	dto, _ := args.Get(0).(*application.ReservationDTO)
	return dto, args.Error(1)
}

func (m *mockReservationService) UpdateReservation(ctx context.Context, reservationID, callerID uuid.UUID, patch reservationDomain.Patch) (*application.ReservationDTO, error) {
	args := m.Called(ctx, reservationID, callerID, patch)
	dto, _ := args.Get(0).(*application.ReservationDTO)
	return dto, args.Error(1)
}

func (m *mockReservationService) DeleteReservation(ctx context.Context, reservationID, callerID uuid.UUID) error {
	return m.Called(ctx, reservationID, callerID).Error(0)
}

func (m *mockReservationService) GetReservation(ctx context.Context, reservationID, callerID uuid.UUID) (*application.ReservationDTO, error) {
	args := m.Called(ctx, reservationID, callerID)
	dto, _ := args.Get(0).(*application.ReservationDTO)
	return dto, args.Error(1)
}

func (m *mockReservationService) GetRenterReservations(ctx context.Context, renterID uuid.UUID, page, limit int) (*domain.PaginatedResult[application.ReservationDTO], error) {
	args := m.Called(ctx, renterID, page, limit)
	res, _ := args.Get(0).(*domain.PaginatedResult[application.ReservationDTO])
	return res, args.Error(1)
}

func (m *mockReservationService) GetHostReservations(ctx context.Context, hostID uuid.UUID, page, limit int) (*domain.PaginatedResult[application.ReservationDTO], error) {
	args := m.Called(ctx, hostID, page, limit)
	res, _ := args.Get(0).(*domain.PaginatedResult[application.ReservationDTO])
	return res, args.Error(1)
}

func (m *mockReservationService) GetHostStats(ctx context.Context, hostID uuid.UUID) (*application.HostStatsDTO, error) {
	args := m.Called(ctx, hostID)
	stats, _ := args.Get(0).(*application.HostStatsDTO)
	return stats, args.Error(1)
}

func (m *mockReservationService) GetBookedRanges(ctx context.Context, listingID uuid.UUID, from, to string) ([]application.BookedRangeDTO, error) {
	args := m.Called(ctx, listingID, from, to)
	ranges, _ := args.Get(0).([]application.BookedRangeDTO)
	return ranges, args.Error(1)
}

func (m *mockReservationService) ListAllReservations(ctx context.Context, page, limit int) ([]application.ReservationDTO, int64, error) {
	args := m.Called(ctx, page, limit)
	items, _ := args.Get(0).([]application.ReservationDTO)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockReservationService) GetReservationStats(ctx context.Context) (*application.ReservationStatsDTO, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*application.ReservationStatsDTO)
	return stats, args.Error(1)
}

type mockNotificationService struct {
	mock.Mock
}

func (m *mockNotificationService) ListNotifications(ctx context.Context, userID uuid.UUID) ([]application.NotificationDTO, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]application.NotificationDTO)
	return items, args.Error(1)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type testServer struct {
	router        *gin.Engine
	jwt           *auth.JWTManager
	reservations  *mockReservationService
	notifications *mockNotificationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	s := &testServer{
		router:        gin.New(),
		jwt:           auth.NewJWTManager("test-secret", time.Minute, time.Hour),
		reservations:  &mockReservationService{},
		notifications: &mockNotificationService{},
	}
	root := s.router.Group("")
	NewReservationHandler(s.reservations).RegisterRoutes(root, s.jwt)
	NewAdminReservationHandler(s.reservations).RegisterRoutes(root, s.jwt)
	NewNotificationHandler(s.notifications).RegisterRoutes(root, s.jwt)

	t.Cleanup(func() {
		s.reservations.AssertExpectations(t)
		s.notifications.AssertExpectations(t)
	})
	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role auth.Role) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestCreateReservation(t *testing.T) {
	renterID, listingID := uuid.New(), uuid.New()
	body := map[string]any{
		"listingId": listingID.String(),
		"stayStart": "2024-06-01",
		"stayEnd":   "2024-06-03",
	}
	created := &application.ReservationDTO{ID: uuid.New(), ListingID: listingID, Status: "pending", TotalPrice: 50000}

	t.Run("requires a token", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/reservations", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a malformed body before the service", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient),
			map[string]any{"listingId": "not-a-uuid", "stayStart": "2024-06-01", "stayEnd": "2024-06-03"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, string(domain.KindValidation), env.Error.Code)
		assert.Contains(t, env.Error.Message, "listingId")
	})

	t.Run("missing dates", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient),
			map[string]any{"listingId": listingID.String(), "stayStart": "2024-06-01"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "stayEnd is required", decode(t, w).Error.Message)
	})

	t.Run("created", func(t *testing.T) {
		s := newTestServer(t)
		s.reservations.On("CreateReservationIdempotent", mock.Anything, renterID, "key-1",
			mock.MatchedBy(func(req application.CreateReservationRequest) bool {
				return req.ListingID == listingID.String() && req.StayEnd == "2024-06-03"
			})).Return(created, false, nil).Once()

		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient), body,
			"Idempotency-Key", "key-1")
		assert.Equal(t, http.StatusCreated, w.Code)

		var dto application.ReservationDTO
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &dto))
		assert.Equal(t, created.ID, dto.ID)
	})

	t.Run("replayed key answers 200", func(t *testing.T) {
		s := newTestServer(t)
		s.reservations.On("CreateReservationIdempotent", mock.Anything, renterID, "key-1", mock.Anything).
			Return(created, true, nil).Once()

		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient), body,
			"Idempotency-Key", "key-1")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("conflict carries the range", func(t *testing.T) {
		s := newTestServer(t)
		s.reservations.On("CreateReservationIdempotent", mock.Anything, renterID, "", mock.Anything).
			Return(nil, false, domain.NewDateConflictError("2024-06-02T00:00:00Z", "2024-06-05T00:00:00Z")).Once()

		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient), body)
		assert.Equal(t, http.StatusConflict, w.Code)
		env := decode(t, w)
		assert.Equal(t, string(domain.KindDateConflict), env.Error.Code)
		assert.Equal(t, map[string]any{"start": "2024-06-02T00:00:00Z", "end": "2024-06-05T00:00:00Z"},
			env.Error.Details["conflictingRange"])
	})

	t.Run("storage failures stay generic", func(t *testing.T) {
		s := newTestServer(t)
		s.reservations.On("CreateReservationIdempotent", mock.Anything, renterID, "", mock.Anything).
			Return(nil, false, domain.NewStorageError("save reservation", errors.New("pq: password authentication failed"))).Once()

		w := s.do(t, http.MethodPost, "/api/v1/reservations", s.token(t, renterID, auth.RoleClient), body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func TestErrorKindStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewNotFoundError("Reservation", "x"), http.StatusNotFound},
		{domain.NewForbiddenError("not a party"), http.StatusForbidden},
		{domain.NewSelfBookingError(), http.StatusForbidden},
		{domain.NewInvalidDateRangeError("stayEnd must be after stayStart"), http.StatusBadRequest},
		{domain.NewPriceMismatchError(50000, 40000), http.StatusUnprocessableEntity},
		{domain.NewInvalidTransitionError("cancelled", "confirmed"), http.StatusConflict},
		{domain.NewImmutableFieldError([]string{"stayStart"}, "confirmed"), http.StatusConflict},
		{domain.NewConflictError("modified"), http.StatusConflict},
	}
	callerID, rsvID := uuid.New(), uuid.New()
	for _, tt := range tests {
		t.Run(string(domain.KindOf(tt.err)), func(t *testing.T) {
			s := newTestServer(t)
			s.reservations.On("GetReservation", mock.Anything, rsvID, callerID).Return(nil, tt.err).Once()

			w := s.do(t, http.MethodGet, "/api/v1/reservations/"+rsvID.String(), s.token(t, callerID, auth.RoleClient), nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, string(domain.KindOf(tt.err)), decode(t, w).Error.Code)
		})
	}
}

func TestUpdateReservation_PassesEveryTouchedField(t *testing.T) {
	s := newTestServer(t)
	callerID, rsvID := uuid.New(), uuid.New()
	s.reservations.On("UpdateReservation", mock.Anything, rsvID, callerID,
		mock.MatchedBy(func(p reservationDomain.Patch) bool {
			return assert.ObjectsAreEqual([]string{"notes", "totalPrice"}, p.Fields) &&
				p.Notes != nil && *p.Notes == "late arrival"
		})).Return(nil, domain.NewImmutableFieldError([]string{"totalPrice"}, "pending")).Once()

	w := s.do(t, http.MethodPatch, "/api/v1/reservations/"+rsvID.String(), s.token(t, callerID, auth.RoleClient),
		`{"totalPrice": 1, "notes": "late arrival"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []any{"totalPrice"}, decode(t, w).Error.Details["fields"])
}

func TestUpdateReservation_RejectsNonObjectBody(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPatch, "/api/v1/reservations/"+uuid.NewString(), s.token(t, uuid.New(), auth.RoleClient), `["notes"]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodePatch(t *testing.T) {
	raw := map[string]json.RawMessage{
		"stayStart":     json.RawMessage(`"2024-07-01"`),
		"stayEnd":       json.RawMessage(`"next week"`),
		"guestCount":    json.RawMessage(`3`),
		"checkInTime":   json.RawMessage(`"16:30"`),
		"notes":         json.RawMessage(`null`),
		"paymentStatus": json.RawMessage(`7`),
	}
	p := decodePatch(raw)

	assert.Equal(t, []string{"checkInTime", "guestCount", "notes", "paymentStatus", "stayEnd", "stayStart"}, p.Fields)
	assert.Nil(t, p.Notes)
	assert.Nil(t, p.PaymentStatus)
	require.NotNil(t, p.CheckInTime)
	assert.Equal(t, "16:30", *p.CheckInTime)
}

func TestSetStatus(t *testing.T) {
	s := newTestServer(t)
	hostID, rsvID := uuid.New(), uuid.New()
	s.reservations.On("SetStatus", mock.Anything, rsvID, hostID, "confirmed").
		Return(&application.ReservationDTO{ID: rsvID, Status: "confirmed"}, nil).Once()

	w := s.do(t, http.MethodPatch, "/api/v1/reservations/"+rsvID.String()+"/status",
		s.token(t, hostID, auth.RoleOwner), map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/reservations/"+rsvID.String()+"/status",
		s.token(t, hostID, auth.RoleOwner), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/reservations/not-an-id/status",
		s.token(t, hostID, auth.RoleOwner), map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteReservation(t *testing.T) {
	s := newTestServer(t)
	callerID, rsvID := uuid.New(), uuid.New()
	s.reservations.On("DeleteReservation", mock.Anything, rsvID, callerID).Return(nil).Once()

	w := s.do(t, http.MethodDelete, "/api/v1/reservations/"+rsvID.String(), s.token(t, callerID, auth.RoleClient), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHostRoutesRequireHostRole(t *testing.T) {
	s := newTestServer(t)
	hostID := uuid.New()

	w := s.do(t, http.MethodGet, "/api/v1/reservations/owner", s.token(t, hostID, auth.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.reservations.On("GetHostReservations", mock.Anything, hostID, 2, 100).
		Return(&domain.PaginatedResult[application.ReservationDTO]{Items: []application.ReservationDTO{}, Total: 0, Page: 2, Limit: 100}, nil).Once()
	w = s.do(t, http.MethodGet, "/api/v1/reservations/owner?page=2&limit=500", s.token(t, hostID, auth.RoleOwner), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.reservations.On("GetHostStats", mock.Anything, hostID).
		Return(&application.HostStatsDTO{Total: 3, Confirmed: 2, TotalRevenue: 90000}, nil).Once()
	w = s.do(t, http.MethodGet, "/api/v1/reservations/stats/owner", s.token(t, hostID, auth.RoleOwner), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalRevenue":90000`)
}

func TestRenterReservations(t *testing.T) {
	s := newTestServer(t)
	renterID := uuid.New()
	s.reservations.On("GetRenterReservations", mock.Anything, renterID, 1, 20).
		Return(&domain.PaginatedResult[application.ReservationDTO]{Items: []application.ReservationDTO{{ID: uuid.New()}}, Total: 1, Page: 1, Limit: 20}, nil).Once()

	w := s.do(t, http.MethodGet, "/api/v1/reservations/client", s.token(t, renterID, auth.RoleClient), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalPages":1`)
}

func TestBookedRanges(t *testing.T) {
	s := newTestServer(t)
	listingID := uuid.New()

	w := s.do(t, http.MethodGet, "/api/v1/listings/"+listingID.String()+"/booked-ranges?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error.Message, "from")

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.reservations.On("GetBookedRanges", mock.Anything, listingID, "2024-06-01", "").
		Return([]application.BookedRangeDTO{{StayStart: start, StayEnd: start.Add(48 * time.Hour), Status: "confirmed"}}, nil).Once()

	w = s.do(t, http.MethodGet, "/api/v1/listings/"+listingID.String()+"/booked-ranges?from=2024-06-01", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	adminID := uuid.New()

	w := s.do(t, http.MethodGet, "/api/v1/admin/reservations", s.token(t, adminID, auth.RoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.reservations.On("ListAllReservations", mock.Anything, 1, 20).
		Return([]application.ReservationDTO{{ID: uuid.New()}}, int64(41), nil).Once()
	w = s.do(t, http.MethodGet, "/api/v1/admin/reservations", s.token(t, adminID, auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalPages":3`)

	s.reservations.On("GetReservationStats", mock.Anything).
		Return(&application.ReservationStatsDTO{TotalReservations: 41, ByStatus: map[string]int64{"pending": 41}}, nil).Once()
	w = s.do(t, http.MethodGet, "/api/v1/admin/stats/reservations", s.token(t, adminID, auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationRoutes(t *testing.T) {
	s := newTestServer(t)
	userID, notifID := uuid.New(), uuid.New()
	token := s.token(t, userID, auth.RoleClient)

	s.notifications.On("ListNotifications", mock.Anything, userID).
		Return([]application.NotificationDTO{{ID: notifID, Title: "Reservation confirmed"}}, nil).Once()
	w := s.do(t, http.MethodGet, "/api/v1/notifications", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Reservation confirmed")

	s.notifications.On("UnreadCount", mock.Anything, userID).Return(int64(2), nil).Once()
	w = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	assert.Contains(t, w.Body.String(), `"count":2`)

	s.notifications.On("MarkRead", mock.Anything, notifID, userID).
		Return(domain.NewNotFoundError("Notification", notifID.String())).Once()
	w = s.do(t, http.MethodPut, "/api/v1/notifications/"+notifID.String()+"/read", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.notifications.On("MarkAllRead", mock.Anything, userID).Return(int64(2), nil).Once()
	w = s.do(t, http.MethodPut, "/api/v1/notifications/read-all", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"updated":2`)
}
