package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-kiosk/internal/booking"
	"laundry-kiosk/internal/model"
)

// machineView is a machine as the kiosk screen shows it.
type machineView struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Type             model.MachineType   `json:"type"`
	Status           model.MachineStatus `json:"status"`
	OwnerID          string              `json:"ownerId,omitempty"`
	RemainingMinutes *int                `json:"remainingMinutes,omitempty"`
	Mine             bool                `json:"mine"`
}

func (h *Handler) views(inv model.Inventory) []machineView {
	me := h.engine.Identity()
	out := make([]machineView, 0, len(inv))
	for _, m := range inv {
		out = append(out, machineView{
			ID:               m.ID,
			Name:             m.Name,
			Type:             m.Type,
			Status:           m.Status(),
			OwnerID:          m.OwnerID(),
			RemainingMinutes: m.RemainingMinutes(),
			Mine:             m.OwnedBy(me),
		})
	}
	return out
}

// GetMachines handles GET /api/machines?type=WASHER.
func (h *Handler) GetMachines(c *gin.Context) {
	t := model.MachineType(strings.ToUpper(c.Query("type")))
	if t != "" && !t.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be WASHER or DRYER"})
		return
	}
	c.JSON(http.StatusOK, h.views(h.engine.Machines(t)))
}

// BookMachine handles POST /api/machines/:id/book.
func (h *Handler) BookMachine(c *gin.Context) {
	inv, err := h.engine.Book(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, booking.ErrPersist) {
		h.fail(c, err)
		return
	}
	resp := gin.H{
		"booking":  h.engine.ActiveBooking(),
		"machines": h.views(inv),
	}
	if err != nil {
		resp["persistError"] = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// GetBooking handles GET /api/booking.
func (h *Handler) GetBooking(c *gin.Context) {
	st := h.engine.Status(h.clock())
	c.JSON(http.StatusOK, gin.H{"booking": st.Booking, "timeLeft": st.SecondsLeft})
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

// CancelBooking handles POST /api/booking/cancel. The caller must confirm
// explicitly.
func (h *Handler) CancelBooking(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cancellation must be confirmed"})
		return
	}

	inv, err := h.engine.Cancel(c.Request.Context())
	if err != nil && !errors.Is(err, booking.ErrPersist) {
		h.fail(c, err)
		return
	}
	resp := gin.H{"machines": h.views(inv)}
	if err != nil {
		resp["persistError"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status(h.clock()))
}

// AckStatus handles POST /api/status/ack.
func (h *Handler) AckStatus(c *gin.Context) {
	h.engine.AcknowledgeCompletion()
	c.Status(http.StatusNoContent)
}
