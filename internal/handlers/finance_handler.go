package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tattootrack/internal/schedule"
	"tattootrack/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FinanceHandler handles period reports.
type FinanceHandler struct {
	financeService services.FinanceServicer
	now            func() time.Time
}

// NewFinanceHandler creates a new FinanceHandler.
func NewFinanceHandler(financeService services.FinanceServicer) *FinanceHandler {
	return &FinanceHandler{financeService: financeService, now: time.Now}
}

// period reads start_date and end_date. Missing bounds default to the
// current month.
func (h *FinanceHandler) period(c *gin.Context) (time.Time, time.Time, error) {
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	today := schedule.NormalizeDay(h.now())
	first, next := schedule.MonthRange(today.Year(), today.Month())
	if start == nil {
		start = &first
	}
	if end == nil {
		last := next.AddDate(0, 0, -1)
		end = &last
	}
	return *start, *end, nil
}

// Summary handles the period totals.
// @Summary     Finance summary
// @Description Total income, expense and balance for a period (defaults to the current month)
// @Tags        finances
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date   query string false "Last day (YYYY-MM-DD)"
// @Success     200 {object} services.FinanceSummary "Totals"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Router      /finances/summary [get]
func (h *FinanceHandler) Summary(c *gin.Context) {
	from, to, err := h.period(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.financeService.Summary(c.Request.Context(), from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ByCategory handles the per-category breakdown.
// @Summary     Totals by category
// @Description Per-category totals for a period, largest first
// @Tags        finances
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date   query string false "Last day (YYYY-MM-DD)"
// @Success     200 {array} services.CategoryTotal "Category totals"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Router      /finances/by-category [get]
func (h *FinanceHandler) ByCategory(c *gin.Context) {
	from, to, err := h.period(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	totals, err := h.financeService.ByCategory(c.Request.Context(), from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// Report handles the combined summary and breakdown.
// @Summary     Finance report
// @Tags        finances
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date   query string false "Last day (YYYY-MM-DD)"
// @Success     200 {object} services.FinanceReport "Report"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Router      /finances/report [get]
func (h *FinanceHandler) Report(c *gin.Context) {
	from, to, err := h.period(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.financeService.Report(c.Request.Context(), from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Export handles the spreadsheet download.
// @Summary     Export finances
// @Description Download the period as an xlsx workbook
// @Tags        finances
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date   query string false "Last day (YYYY-MM-DD)"
// @Success     200 {file} file "Workbook"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Router      /finances/export [get]
func (h *FinanceHandler) Export(c *gin.Context) {
	from, to, err := h.period(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.financeService.Export(c.Request.Context(), from, to, &buf); err != nil {
		respondWithError(c, err)
		return
	}

	filename := fmt.Sprintf("financas_%s_%s.xlsx", schedule.DateKey(from), schedule.DateKey(to))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
