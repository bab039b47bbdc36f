package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/feelincoding/openmat/internal/service/schedule"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockScheduleUseCase is a mock implementation of schedule.ScheduleUseCase
type MockScheduleUseCase struct {
	mock.Mock
}

func (m *MockScheduleUseCase) CreateFacility(ctx context.Context, input schedule.CreateFacilityInput) (*domain.Facility, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Facility), args.Error(1)
}

func (m *MockScheduleUseCase) AdjustFacilityCapacity(ctx context.Context, facilityID int64, capacity int, actorID string) (*domain.Facility, error) {
	args := m.Called(ctx, facilityID, capacity, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Facility), args.Error(1)
}

func (m *MockScheduleUseCase) CreateSlot(ctx context.Context, input schedule.CreateSlotInput) (*domain.Slot, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Slot), args.Error(1)
}

func (m *MockScheduleUseCase) RetireSlot(ctx context.Context, slotID int64, actorID string) error {
	args := m.Called(ctx, slotID, actorID)
	return args.Error(0)
}

func (m *MockScheduleUseCase) ListUpcomingSlots(ctx context.Context, facilityID int64) ([]domain.Slot, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockScheduleUseCase) RetireEndedSlots(ctx context.Context) ([]domain.Slot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func TestScheduleHandler_createFacility(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(createFacilityRequest{Name: "Downtown Dojo", Capacity: 20})
	c.Request = httptest.NewRequest("POST", "/facilities", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("X-Actor-Id", "admin")

	facility := &domain.Facility{ID: 1, Name: "Downtown Dojo", Capacity: 20}
	mockService.On("CreateFacility", c.Request.Context(), schedule.CreateFacilityInput{
		Name:     "Downtown Dojo",
		Capacity: 20,
		ActorID:  "admin",
	}).Return(facility, nil)

	handler.createFacility(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestScheduleHandler_createFacility_MissingName(t *testing.T) {
	handler := NewScheduleHandler(&MockScheduleUseCase{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(createFacilityRequest{Capacity: 20})
	c.Request = httptest.NewRequest("POST", "/facilities", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.createFacility(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandler_adjustCapacity(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "1"}}
	body, _ := json.Marshal(adjustCapacityRequest{Capacity: 30})
	c.Request = httptest.NewRequest("PUT", "/facilities/1/capacity", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	facility := &domain.Facility{ID: 1, Name: "Downtown Dojo", Capacity: 30}
	mockService.On("AdjustFacilityCapacity", c.Request.Context(), int64(1), 30, "anonymous").Return(facility, nil)

	handler.adjustCapacity(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestScheduleHandler_createSlot_Overlap(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(createSlotRequest{
		FacilityID: 1,
		StartAt:    start,
		EndAt:      start.Add(2 * time.Hour),
		Capacity:   10,
	})
	c.Request = httptest.NewRequest("POST", "/slots", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("CreateSlot", c.Request.Context(), mock.AnythingOfType("schedule.CreateSlotInput")).
		Return(nil, domain.ErrOverlapConflict)

	handler.createSlot(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockService.AssertExpectations(t)
}

func TestScheduleHandler_createSlot_EndBeforeStart(t *testing.T) {
	handler := NewScheduleHandler(&MockScheduleUseCase{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(createSlotRequest{
		FacilityID: 1,
		StartAt:    start,
		EndAt:      start.Add(-time.Hour),
		Capacity:   10,
	})
	c.Request = httptest.NewRequest("POST", "/slots", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.createSlot(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandler_listSlots(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET", "/slots?facility_id=1", nil)

	slots := []domain.Slot{{ID: 7, FacilityID: 1, Capacity: 10}}
	mockService.On("ListUpcomingSlots", c.Request.Context(), int64(1)).Return(slots, nil)

	handler.listSlots(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestScheduleHandler_listSlots_MissingFacilityID(t *testing.T) {
	handler := NewScheduleHandler(&MockScheduleUseCase{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest("GET", "/slots", nil)

	handler.listSlots(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandler_retireSlot(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "7"}}
	c.Request = httptest.NewRequest("DELETE", "/slots/7", nil)

	mockService.On("RetireSlot", c.Request.Context(), int64(7), "anonymous").Return(nil)

	handler.retireSlot(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestScheduleHandler_retireSlot_NotFound(t *testing.T) {
	mockService := &MockScheduleUseCase{}
	handler := NewScheduleHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "404"}}
	c.Request = httptest.NewRequest("DELETE", "/slots/404", nil)

	mockService.On("RetireSlot", c.Request.Context(), int64(404), "anonymous").Return(domain.ErrNotFound)

	handler.retireSlot(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}
