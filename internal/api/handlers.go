package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/fx"
	"github.com/vyrodovalexey/avafx/internal/observability"
)

// MessageCurrencies is the envelope message of the currency list.
const MessageCurrencies = "Currency list fetched successfully"

// Handler serves the FX endpoints.
type Handler struct {
	service    fx.Service
	currencies atomic.Pointer[[]config.Currency]
	logger     observability.Logger
	now        func() time.Time
}

// NewHandler creates a Handler calling service.
func NewHandler(service fx.Service, currencies []config.Currency, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{service: service, logger: logger, now: time.Now}
	h.SetCurrencies(currencies)
	return h
}

// SetCurrencies replaces the served currency list, e.g. after a reload.
func (h *Handler) SetCurrencies(currencies []config.Currency) {
	list := make([]config.Currency, len(currencies))
	copy(list, currencies)
	h.currencies.Store(&list)
}

// Root answers GET /api.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "FX gateway API is running!",
		"timestamp": h.now().UTC(),
	})
}

// Visa answers GET /api/visa.
func (h *Handler) Visa(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API is working!"})
}

// HelloWorld probes the provider. Upstream failures are reported in the
// envelope, never as an HTTP error.
func (h *Handler) HelloWorld(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Probe(c.Request.Context()))
}

// FXRate requests a quote.
func (h *Handler) FXRate(c *gin.Context) {
	var req fx.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "invalid request body: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.service.Quote(c.Request.Context(), req))
}

// Currencies returns the configured reference currency list.
func (h *Handler) Currencies(c *gin.Context) {
	list := *h.currencies.Load()
	c.JSON(http.StatusOK, fx.Envelope[[]config.Currency]{
		ResponseCode:    fx.CodeSuccess,
		ResponseMessage: MessageCurrencies,
		Result:          &list,
	})
}
