package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockReservationUseCase is a mock implementation of reservation.ReservationUseCase
type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) RequestReservation(ctx context.Context, slotID int64, requesterID string) (*domain.Reservation, error) {
	args := m.Called(ctx, slotID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) CancelReservation(ctx context.Context, reference, actorID string) (*domain.Reservation, error) {
	args := m.Called(ctx, reference, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ListActiveReservations(ctx context.Context, slotID int64, limit, offset int) ([]domain.Reservation, error) {
	args := m.Called(ctx, slotID, limit, offset)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) GetSlotOccupancy(ctx context.Context, slotID int64) (int, int, error) {
	args := m.Called(ctx, slotID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockReservationUseCase) History(ctx context.Context, reference string, afterSeq int64, limit int) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, reference, afterSeq, limit)
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

func TestReservationHandler_request(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(requestReservationRequest{SlotID: 7, RequesterID: "r1"})
	c.Request = httptest.NewRequest("POST", "/reservations", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	res := &domain.Reservation{ID: 1, SlotID: 7, RequesterID: "r1", Reference: "ref-1", Status: domain.ReservationStatusConfirmed}
	mockService.On("RequestReservation", c.Request.Context(), int64(7), "r1").Return(res, nil)

	handler.request(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response reservationResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "ref-1", response.Reference)
	assert.Equal(t, string(domain.ReservationStatusConfirmed), response.Status)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_request_Conflicts(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{name: "duplicate booking", err: domain.ErrDuplicateBooking},
		{name: "slot expired", err: domain.ErrSlotExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockReservationUseCase{}
			handler := NewReservationHandler(mockService)

			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			body, _ := json.Marshal(requestReservationRequest{SlotID: 7, RequesterID: "r1"})
			c.Request = httptest.NewRequest("POST", "/reservations", bytes.NewReader(body))
			c.Request.Header.Set("Content-Type", "application/json")

			mockService.On("RequestReservation", c.Request.Context(), int64(7), "r1").Return(nil, tc.err)

			handler.request(c)

			assert.Equal(t, http.StatusConflict, w.Code)
		})
	}
}

func TestReservationHandler_request_InvalidBody(t *testing.T) {
	handler := NewReservationHandler(&MockReservationUseCase{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(requestReservationRequest{SlotID: 7})
	c.Request = httptest.NewRequest("POST", "/reservations", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.request(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationHandler_cancel(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "reference", Value: "ref-1"}}
	c.Request = httptest.NewRequest("DELETE", "/reservations/ref-1", nil)
	c.Request.Header.Set("X-Actor-Id", "r1")

	res := &domain.Reservation{ID: 1, SlotID: 7, RequesterID: "r1", Reference: "ref-1", Status: domain.ReservationStatusCancelled}
	mockService.On("CancelReservation", c.Request.Context(), "ref-1", "r1").Return(res, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response reservationResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusCancelled), response.Status)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_cancel_AlreadyCancelled(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "reference", Value: "ref-1"}}
	c.Request = httptest.NewRequest("DELETE", "/reservations/ref-1", nil)

	mockService.On("CancelReservation", c.Request.Context(), "ref-1", "anonymous").Return(nil, domain.ErrAlreadyCancelled)

	handler.cancel(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockService.AssertExpectations(t)
}

func TestReservationHandler_occupancy(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest("GET", "/slots/7/occupancy", nil)

	mockService.On("GetSlotOccupancy", c.Request.Context(), int64(7)).Return(2, 5, nil)

	handler.occupancy(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response occupancyResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 2, response.Occupancy)
	assert.Equal(t, 5, response.Capacity)

	mockService.AssertExpectations(t)
}

func TestReservationHandler_listActive(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest("GET", "/slots/7/reservations?limit=10&offset=5", nil)

	reservations := []domain.Reservation{
		{ID: 1, SlotID: 7, RequesterID: "r1", Reference: "ref-1", Status: domain.ReservationStatusConfirmed},
	}
	mockService.On("ListActiveReservations", c.Request.Context(), int64(7), 10, 5).Return(reservations, nil)

	handler.listActive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestReservationHandler_history_Unavailable(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewReservationHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "reference", Value: "ref-1"}}
	c.Request = httptest.NewRequest("GET", "/reservations/ref-1/history", nil)

	mockService.On("History", c.Request.Context(), "ref-1", int64(0), 0).Return([]domain.AuditEntry(nil), domain.ErrUnavailable)

	handler.history(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	mockService.AssertExpectations(t)
}
