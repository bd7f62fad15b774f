package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"laundry-kiosk/internal/assets"
	"laundry-kiosk/internal/booking"
	"laundry-kiosk/internal/guide"
	"laundry-kiosk/internal/store"
)

// Deps are the services the API is a thin layer over.
type Deps struct {
	Engine   *booking.Engine
	Store    store.Store
	Assets   *assets.Service
	Guide    *guide.Guide
	WebPush  *webpush.Options
	Clock    func() time.Time
	Logger   zerolog.Logger
	MaxBytes int64
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine   *booking.Engine
	store    store.Store
	assets   *assets.Service
	guide    *guide.Guide
	webpush  *webpush.Options
	clock    func() time.Time
	log      zerolog.Logger
	maxBytes int64
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	g := d.Guide
	if g == nil {
		g = guide.Default()
	}
	return &Handler{
		engine:   d.Engine,
		store:    d.Store,
		assets:   d.Assets,
		guide:    g,
		webpush:  d.WebPush,
		clock:    clock,
		log:      d.Logger,
		maxBytes: d.MaxBytes,
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrUnknownMachine), errors.Is(err, assets.ErrUnknownSlot):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrMachineUnavailable),
		errors.Is(err, booking.ErrBookingActive),
		errors.Is(err, booking.ErrNoActiveBooking):
		return http.StatusConflict
	case errors.Is(err, assets.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, assets.ErrNotImage):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
