package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/service/settlement"
)

// SettlementHandler exposes previews, payments and corrections of one flow.
type SettlementHandler struct {
	svc    *settlement.Service
	loc    *time.Location
	logger *zap.Logger
}

// NewSettlementHandler constructs the HTTP handler adapter for svc's flow.
func NewSettlementHandler(svc *settlement.Service, loc *time.Location, logger *zap.Logger) *SettlementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementHandler{svc: svc, loc: loc, logger: logger.With(zap.String("flow", svc.Flow().String()))}
}

type settleRequest struct {
	Amount            *decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod     string           `json:"paymentMethod"`
	Date              string           `json:"date" binding:"omitempty,calendar_date"`
	PeriodStart       string           `json:"periodStart" binding:"omitempty,calendar_date"`
	PeriodEnd         string           `json:"periodEnd" binding:"omitempty,calendar_date"`
	ManualPeriodTotal *decimal.Decimal `json:"periodTotal"`
	ItemIDs           []string         `json:"itemIds"`
	Note              string           `json:"note"`
}

type editRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	PeriodTotal   *decimal.Decimal `json:"periodTotal"`
	PeriodStart   *string          `json:"periodStart" binding:"omitempty,calendar_date"`
	PeriodEnd     *string          `json:"periodEnd" binding:"omitempty,calendar_date"`
	PaymentMethod *string          `json:"paymentMethod"`
	Note          *string          `json:"note"`
}

// Summary previews a settlement without changing anything.
func (h *SettlementHandler) Summary(c *gin.Context) {
	var q rangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	r, err := q.resolve(h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	summary, err := h.svc.Preview(c.Request.Context(), ownerID(c), c.Param("id"), r, splitIDs(c.Query("itemIds")))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Settle records a payment to or from the counterparty.
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	period, err := dateRange(req.PeriodStart, req.PeriodEnd, h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	date, err := dayOrNil(req.Date, h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	settleReq := settlement.Request{
		OwnerID:           ownerID(c),
		CounterpartyID:    c.Param("id"),
		Amount:            *req.Amount,
		PaymentMethod:     req.PaymentMethod,
		Period:            period,
		ManualPeriodTotal: req.ManualPeriodTotal,
		ItemIDs:           req.ItemIDs,
		Note:              req.Note,
	}
	if date != nil {
		settleReq.Date = *date
	}

	record, err := h.svc.Settle(c.Request.Context(), settleReq)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// List returns the settlements of a counterparty, newest first.
func (h *SettlementHandler) List(c *gin.Context) {
	limit, err := limitParam(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	records, err := h.svc.List(c.Request.Context(), ownerID(c), c.Param("id"), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": records})
}

// Get returns one settlement.
func (h *SettlementHandler) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), ownerID(c), c.Param("paymentId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Edit corrects a committed settlement.
func (h *SettlementHandler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	editReq := settlement.EditRequest{
		OwnerID:       ownerID(c),
		SettlementID:  c.Param("paymentId"),
		Amount:        req.Amount,
		PeriodTotal:   req.PeriodTotal,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
	}
	if req.PeriodStart != nil || req.PeriodEnd != nil {
		var period models.DateRange
		var err error
		if period.Start, err = dayOrNil(deref(req.PeriodStart), h.loc); err != nil {
			writeError(c, h.logger, err)
			return
		}
		if period.End, err = dayOrNil(deref(req.PeriodEnd), h.loc); err != nil {
			writeError(c, h.logger, err)
			return
		}
		editReq.Period = &period
	}

	record, err := h.svc.Edit(c.Request.Context(), editReq)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
