package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"laundry-kiosk/internal/model"
)

const maxHistoryLimit = 1000

func historyLimit(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("limit", "100")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}

// GetHistory handles GET /api/history.
func (h *Handler) GetHistory(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	records, err := h.store.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ExportHistory handles GET /api/history/export and streams an xlsx workbook.
func (h *Handler) ExportHistory(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	records, err := h.store.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	name := fmt.Sprintf("laundry-history-%s.xlsx", h.clock().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if err := writeHistory(c.Writer, records); err != nil {
		h.log.Error().Err(err).Msg("failed to write history workbook")
	}
}

const historySheet = "History"

var historyColumns = []string{"Machine", "Name", "Type", "Outcome", "Started", "Planned end", "Ended"}

func writeHistory(w io.Writer, records []model.BookingRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}

	header := make([]interface{}, len(historyColumns))
	for i, col := range historyColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(historyColumns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(historySheet, "A1", last, style); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.MachineID,
			r.MachineName,
			string(r.Type),
			r.Outcome,
			r.PeriodStart.UTC().Format(time.RFC3339),
			r.PeriodEnd.UTC().Format(time.RFC3339),
			r.ObservedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
