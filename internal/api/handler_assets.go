package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-kiosk/internal/assets"
)

// GetIcons handles GET /api/icons.
func (h *Handler) GetIcons(c *gin.Context) {
	icons, err := h.assets.Icons(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, icons)
}

// PutIcon handles PUT /api/machines/:id/icon.
func (h *Handler) PutIcon(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.engine.Inventory().Index(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown machine %q", id)})
		return
	}
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	uri, err := h.assets.SetIcon(c.Request.Context(), id, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "icon": uri})
}

// GetBranding handles GET /api/branding.
func (h *Handler) GetBranding(c *gin.Context) {
	branding, err := h.assets.Branding(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, branding)
}

// PutBranding handles PUT /api/branding/:slot.
func (h *Handler) PutBranding(c *gin.Context) {
	slot, err := assets.ParseSlot(c.Param("slot"))
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	uri, err := h.assets.SetBranding(c.Request.Context(), slot, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": slot, "image": uri})
}

// GetGuide handles GET /api/guide.
func (h *Handler) GetGuide(c *gin.Context) {
	c.JSON(http.StatusOK, h.guide)
}

// readUpload returns the uploaded bytes from a multipart "file" field or the
// raw request body, refusing anything above the size limit.
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", assets.ErrNotImage, err)
		}
		if h.maxBytes > 0 && fh.Size > h.maxBytes {
			return nil, fmt.Errorf("%w: %d bytes", assets.ErrTooLarge, fh.Size)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	if h.maxBytes > 0 {
		r = io.LimitReader(r, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", assets.ErrTooLarge, h.maxBytes)
	}
	return data, nil
}
