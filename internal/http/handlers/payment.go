package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainbilling "github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	log     *logger.Logger
	billing services.BillingService
}

func NewPaymentHandler(log *logger.Logger, billing services.BillingService) *PaymentHandler {
	return &PaymentHandler{log: log.With("handler", "PaymentHandler"), billing: billing}
}

// GET /payments/plans
func (h *PaymentHandler) Plans(c *gin.Context) {
	response.RespondOK(c, h.billing.Plans())
}

// POST /payments/checkout
// body: { "plan": "PROFESSIONAL", "period": "monthly" }
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req struct {
		Plan   string `json:"plan"`
		Period string `json:"period"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.billing.Checkout(
		c.Request.Context(),
		user.Tier(strings.ToUpper(strings.TrimSpace(req.Plan))),
		domainbilling.Period(strings.ToLower(strings.TrimSpace(req.Period))),
	)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /payments/simulate
// body: { "paymentId": "..." }
func (h *PaymentHandler) Simulate(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId"`
	}
	if !bindJSON(c, &req) {
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.PaymentID))
	if err != nil {
		response.RespondAPIError(c, h.log, apierr.Validation(map[string]string{"paymentId": "Identificador de pago no válido"}))
		return
	}
	p, err := h.billing.Simulate(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payment": p})
}

// GET /payments
func (h *PaymentHandler) History(c *gin.Context) {
	list, err := h.billing.History(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"payments": list})
}

// POST /payments/webhook
// Mercado Pago sends the id in the body and, for older topics, in the query string.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.RespondAPIError(c, h.log, apierr.BadRequest("invalid_request", "unreadable body"))
		return
	}
	if len(body) > maxWebhookBody {
		response.RespondAPIError(c, h.log, apierr.BadRequest("invalid_request", "body too large"))
		return
	}
	queryType := c.Query("type")
	if queryType == "" {
		queryType = c.Query("topic")
	}
	queryID := c.Query("data.id")
	if queryID == "" {
		queryID = c.Query("id")
	}
	err = h.billing.HandleWebhook(c.Request.Context(), services.WebhookRequest{
		Body:      body,
		QueryType: queryType,
		QueryID:   queryID,
		Signature: c.GetHeader("x-signature"),
		RequestID: c.GetHeader("x-request-id"),
	})
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"received": true})
}
