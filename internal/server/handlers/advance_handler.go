package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/service/advances"
)

// AdvanceHandler exposes the farmer advance sub-ledger.
type AdvanceHandler struct {
	svc    *advances.Service
	loc    *time.Location
	logger *zap.Logger
}

// NewAdvanceHandler constructs the HTTP handler adapter.
func NewAdvanceHandler(svc *advances.Service, loc *time.Location, logger *zap.Logger) *AdvanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvanceHandler{svc: svc, loc: loc, logger: logger}
}

type advanceRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
	Note   string           `json:"note"`
	Date   string           `json:"date" binding:"omitempty,calendar_date"`
}

type settleAdvanceRequest struct {
	SettledAmount *decimal.Decimal `json:"settledAmount"`
}

// Add records an advance paid to a farmer.
func (h *AdvanceHandler) Add(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	date, err := dayOrNil(req.Date, h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	in := advances.Input{Amount: *req.Amount, Note: req.Note}
	if date != nil {
		in.Date = *date
	}
	advance, err := h.svc.Add(c.Request.Context(), ownerID(c), c.Param("id"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, advance)
}

// List returns a farmer's advances, optionally filtered by ?status=.
func (h *AdvanceHandler) List(c *gin.Context) {
	var statuses []models.AdvanceStatus
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, models.AdvanceStatus(s))
	}
	list, err := h.svc.List(c.Request.Context(), ownerID(c), c.Param("id"), statuses...)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advances": list})
}

// Settle recovers an advance, fully unless settledAmount is given.
func (h *AdvanceHandler) Settle(c *gin.Context) {
	var req settleAdvanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.logger, bindError(err))
			return
		}
	}
	advance, err := h.svc.Settle(c.Request.Context(), ownerID(c), c.Param("advanceId"), req.SettledAmount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, advance)
}

// Delete removes an advance that is not fully recovered.
func (h *AdvanceHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), ownerID(c), c.Param("advanceId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
