package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
)

type paymentRequest struct {
	UserID         string          `json:"userId"`
	CreatorID      string          `json:"creatorId"`
	Amount         decimal.Decimal `json:"amount"`
	ContentID      string          `json:"contentId"`
	SubscriptionID string          `json:"subscriptionId"`
}

func (s *Server) ExecuteHydraPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	c.Set("user_id", userID)
	result := s.payments.ExecutePayment(c.Request.Context(), channeldomain.PayRequest{
		UserID:         userID,
		CreatorID:      strings.TrimSpace(req.CreatorID),
		Amount:         req.Amount,
		ContentID:      strings.TrimSpace(req.ContentID),
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
	})
	if result.Success {
		c.Set("head_id", result.Data.Payment.HeadID)
	}
	render(c, result, "")
}

func (s *Server) ExecuteL1Payment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	c.Set("user_id", userID)
	result := s.payments.ExecuteL1Payment(c.Request.Context(), paymentdomain.L1PaymentRequest{
		UserID:         userID,
		CreatorID:      strings.TrimSpace(req.CreatorID),
		Amount:         req.Amount,
		ContentID:      strings.TrimSpace(req.ContentID),
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
	})
	render(c, result, "")
}

func (s *Server) GetPaymentHistory(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	result := s.payments.GetPaymentHistory(c.Request.Context(), c.Param("userId"), limit)
	render(c, result, "")
}

func (s *Server) GetPayment(c *gin.Context) {
	result := s.payments.GetPayment(c.Request.Context(), strings.TrimSpace(c.Param("paymentId")))
	render(c, result, "payment")
}
