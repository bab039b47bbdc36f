package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/feelincoding/openmat/internal/service/schedule"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ScheduleHandler struct {
	service schedule.ScheduleUseCase
}

type createFacilityRequest struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

type adjustCapacityRequest struct {
	Capacity int `json:"capacity" validate:"required,gt=0"`
}

type createSlotRequest struct {
	FacilityID int64     `json:"facility_id" validate:"required,gt=0"`
	StartAt    time.Time `json:"start_at" validate:"required"`
	EndAt      time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
	Capacity   int       `json:"capacity" validate:"gte=0"`
}

func NewScheduleHandler(service schedule.ScheduleUseCase) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

func (h *ScheduleHandler) Register(router *gin.RouterGroup) {
	router.POST("/facilities", h.createFacility)
	router.PUT("/facilities/:id/capacity", h.adjustCapacity)
	router.POST("/slots", h.createSlot)
	router.GET("/slots", h.listSlots)
	router.DELETE("/slots/:id", h.retireSlot)
}

func (h *ScheduleHandler) createFacility(c *gin.Context) {
	var req createFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	facility, err := h.service.CreateFacility(c.Request.Context(), schedule.CreateFacilityInput{
		Name:     req.Name,
		Capacity: req.Capacity,
		ActorID:  actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, facility)
}

func (h *ScheduleHandler) adjustCapacity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req adjustCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	facility, err := h.service.AdjustFacilityCapacity(c.Request.Context(), id, req.Capacity, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facility)
}

func (h *ScheduleHandler) createSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := h.service.CreateSlot(c.Request.Context(), schedule.CreateSlotInput{
		FacilityID: req.FacilityID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Capacity:   req.Capacity,
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *ScheduleHandler) listSlots(c *gin.Context) {
	facilityID, err := strconv.ParseInt(c.Query("facility_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facility_id"})
		return
	}

	slots, err := h.service.ListUpcomingSlots(c.Request.Context(), facilityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *ScheduleHandler) retireSlot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.RetireSlot(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func actorID(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor-Id"); actor != "" {
		return actor
	}
	return "anonymous"
}
