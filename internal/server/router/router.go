package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/server/handlers"
)

// Handlers groups the HTTP adapters the router mounts.
type Handlers struct {
	Counterparties *handlers.CounterpartyHandler
	LineItems      *handlers.LineItemHandler
	Farmer         *handlers.SettlementHandler
	Member         *handlers.SettlementHandler
	Advances       *handlers.AdvanceHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestID())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api", handlers.RequireOwner())

	api.POST("/farmers", h.Counterparties.CreateFarmer)
	api.GET("/farmers/:id", h.Counterparties.GetFarmer)
	api.PUT("/farmers/:id/active", h.Counterparties.SetActive(models.FlowFarmer))
	api.POST("/farmers/:id/collections", h.LineItems.RecordCollection)
	api.GET("/farmers/:id/collections", h.LineItems.List(models.FlowFarmer))
	api.PUT("/collections/:itemId", h.LineItems.Update(models.FlowFarmer))
	api.DELETE("/collections/:itemId", h.LineItems.Delete(models.FlowFarmer))
	api.GET("/farmers/:id/summary", h.Farmer.Summary)
	api.POST("/farmers/:id/payments", h.Farmer.Settle)
	api.GET("/farmers/:id/payments", h.Farmer.List)
	api.GET("/payments/:paymentId", h.Farmer.Get)
	api.PUT("/payments/:paymentId", h.Farmer.Edit)
	api.POST("/farmers/:id/advances", h.Advances.Add)
	api.GET("/farmers/:id/advances", h.Advances.List)
	api.POST("/advances/:advanceId/settle", h.Advances.Settle)
	api.DELETE("/advances/:advanceId", h.Advances.Delete)

	api.POST("/members", h.Counterparties.CreateMember)
	api.GET("/members/:id", h.Counterparties.GetMember)
	api.PUT("/members/:id/active", h.Counterparties.SetActive(models.FlowMember))
	api.POST("/members/:id/entries", h.LineItems.RecordEntry)
	api.GET("/members/:id/entries", h.LineItems.List(models.FlowMember))
	api.PUT("/entries/:itemId", h.LineItems.Update(models.FlowMember))
	api.DELETE("/entries/:itemId", h.LineItems.Delete(models.FlowMember))
	api.GET("/members/:id/summary", h.Member.Summary)
	api.POST("/members/:id/payments", h.Member.Settle)
	api.GET("/members/:id/payments", h.Member.List)
	api.GET("/member-payments/:paymentId", h.Member.Get)
	api.PUT("/member-payments/:paymentId", h.Member.Edit)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", handlers.RequestIDFrom(c)),
			zap.String("owner", c.GetHeader(handlers.OwnerHeader)))
	}
}
