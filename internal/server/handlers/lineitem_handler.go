package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/service/lineitems"
)

// LineItemHandler exposes farmer collections and member selling entries.
type LineItemHandler struct {
	svc    *lineitems.Service
	loc    *time.Location
	logger *zap.Logger
}

// NewLineItemHandler constructs the HTTP handler adapter.
func NewLineItemHandler(svc *lineitems.Service, loc *time.Location, logger *zap.Logger) *LineItemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineItemHandler{svc: svc, loc: loc, logger: logger}
}

type collectionRequest struct {
	Date     string           `json:"date" binding:"required,calendar_date"`
	Shift    string           `json:"shift" binding:"omitempty,oneof=morning evening"`
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
	Rate     *decimal.Decimal `json:"rate"`
}

type entryRequest struct {
	Date     string           `json:"date" binding:"required,calendar_date"`
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
	Rate     *decimal.Decimal `json:"rate"`
}

type itemUpdateRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Rate     *decimal.Decimal `json:"rate"`
}

// RecordCollection stores milk bought from a farmer.
func (h *LineItemHandler) RecordCollection(c *gin.Context) {
	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	day, err := models.ParseDay(req.Date, h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	item, err := h.svc.RecordCollection(c.Request.Context(), ownerID(c), lineitems.CollectionInput{
		FarmerID: c.Param("id"),
		Date:     day,
		Shift:    models.Shift(req.Shift),
		Quantity: *req.Quantity,
		Rate:     req.Rate,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// RecordEntry stores milk sold to a member, merging same-day entries.
func (h *LineItemHandler) RecordEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	day, err := models.ParseDay(req.Date, h.loc)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	item, err := h.svc.RecordEntry(c.Request.Context(), ownerID(c), lineitems.EntryInput{
		MemberID: c.Param("id"),
		Date:     day,
		Quantity: *req.Quantity,
		Rate:     req.Rate,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// List returns the items of a counterparty of flow.
func (h *LineItemHandler) List(flow models.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
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
		paid, err := paidFilter(c)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}

		items, err := h.svc.ListItems(c.Request.Context(), flow, ownerID(c), c.Param("id"), r, paid)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// Update changes an unpaid item of flow.
func (h *LineItemHandler) Update(flow models.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req itemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.logger, bindError(err))
			return
		}
		item, err := h.svc.UpdateItem(c.Request.Context(), flow, ownerID(c), c.Param("itemId"), lineitems.Update{
			Quantity: req.Quantity,
			Rate:     req.Rate,
		})
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// Delete removes an unpaid item of flow.
func (h *LineItemHandler) Delete(flow models.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.DeleteItem(c.Request.Context(), flow, ownerID(c), c.Param("itemId")); err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
