package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/service/counterparties"
)

// CounterpartyHandler exposes farmer and member records.
type CounterpartyHandler struct {
	svc    *counterparties.Service
	logger *zap.Logger
}

// NewCounterpartyHandler constructs the HTTP handler adapter.
func NewCounterpartyHandler(svc *counterparties.Service, logger *zap.Logger) *CounterpartyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CounterpartyHandler{svc: svc, logger: logger}
}

type counterpartyRequest struct {
	Code           string           `json:"code"`
	Name           string           `json:"name" binding:"required"`
	Mobile         string           `json:"mobile"`
	RatePerLiter   *decimal.Decimal `json:"ratePerLiter" binding:"required"`
	OpeningBalance *decimal.Decimal `json:"openingBalance"`
}

func (r counterpartyRequest) input() counterparties.Input {
	in := counterparties.Input{
		Code:         r.Code,
		Name:         r.Name,
		Mobile:       r.Mobile,
		RatePerLiter: *r.RatePerLiter,
	}
	if r.OpeningBalance != nil {
		in.OpeningBalance = *r.OpeningBalance
	}
	return in
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CreateFarmer registers a farmer.
func (h *CounterpartyHandler) CreateFarmer(c *gin.Context) {
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	farmer, err := h.svc.CreateFarmer(c.Request.Context(), ownerID(c), req.input())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, farmer)
}

// GetFarmer returns one farmer with its running balance.
func (h *CounterpartyHandler) GetFarmer(c *gin.Context) {
	farmer, err := h.svc.GetFarmer(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, farmer)
}

// CreateMember registers a member.
func (h *CounterpartyHandler) CreateMember(c *gin.Context) {
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	member, err := h.svc.CreateMember(c.Request.Context(), ownerID(c), req.input())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// GetMember returns one member with its running balance.
func (h *CounterpartyHandler) GetMember(c *gin.Context) {
	member, err := h.svc.GetMember(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// SetActive activates or deactivates a counterparty of flow.
func (h *CounterpartyHandler) SetActive(flow models.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req activeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, h.logger, bindError(err))
			return
		}
		if err := h.svc.SetActive(c.Request.Context(), flow, ownerID(c), c.Param("id"), *req.Active); err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
