package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/feelincoding/openmat/internal/domain"
	"github.com/feelincoding/openmat/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
}

type requestReservationRequest struct {
	SlotID      int64  `json:"slot_id" validate:"required,gt=0"`
	RequesterID string `json:"requester_id" validate:"required"`
}

type reservationResponse struct {
	Reference   string `json:"reference"`
	SlotID      int64  `json:"slot_id"`
	RequesterID string `json:"requester_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type occupancyResponse struct {
	Occupancy int `json:"occupancy"`
	Capacity  int `json:"capacity"`
}

func NewReservationHandler(service reservation.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/reservations", h.request)
	router.DELETE("/reservations/:reference", h.cancel)
	router.GET("/reservations/:reference/history", h.history)
	router.GET("/slots/:id/reservations", h.listActive)
	router.GET("/slots/:id/occupancy", h.occupancy)
}

func (h *ReservationHandler) request(c *gin.Context) {
	var req requestReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.service.RequestReservation(c.Request.Context(), req.SlotID, req.RequesterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	reference := c.Param("reference")

	res, err := h.service.CancelReservation(c.Request.Context(), reference, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) history(c *gin.Context) {
	reference := c.Param("reference")
	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.service.History(c.Request.Context(), reference, afterSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ReservationHandler) listActive(c *gin.Context) {
	slotID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	reservations, err := h.service.ListActiveReservations(c.Request.Context(), slotID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, toReservationResponse(&reservations[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) occupancy(c *gin.Context) {
	slotID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	occupancy, capacity, err := h.service.GetSlotOccupancy(c.Request.Context(), slotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, occupancyResponse{Occupancy: occupancy, Capacity: capacity})
}

func toReservationResponse(res *domain.Reservation) reservationResponse {
	return reservationResponse{
		Reference:   res.Reference,
		SlotID:      res.SlotID,
		RequesterID: res.RequesterID,
		Status:      string(res.Status),
		CreatedAt:   res.CreatedAt.Format(time.RFC3339),
	}
}
