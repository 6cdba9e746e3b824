package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
)

type openChannelRequest struct {
	UserID        string          `json:"userId"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
}

type closeChannelRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) OpenChannel(c *gin.Context) {
	var req openChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	c.Set("user_id", userID)
	result := s.payments.OpenChannel(c.Request.Context(), paymentdomain.OpenChannelRequest{
		UserID:        userID,
		DepositAmount: req.DepositAmount,
	})
	if result.Success {
		c.Set("head_id", result.Data.HeadID)
	}
	render(c, result, "")
}

// GetChannelStatus answers with the bare snapshot, so a user without a
// channel still gets 200 and hasChannel=false.
func (s *Server) GetChannelStatus(c *gin.Context) {
	result := s.payments.GetChannelStatus(c.Request.Context(), c.Param("userId"))
	if !result.Success {
		renderFailure(c, result.Code, result.Error, result.FallbackToL1, nil)
		return
	}
	c.JSON(http.StatusOK, result.Data)
}

func (s *Server) AwaitChannel(c *gin.Context) {
	result := s.payments.AwaitOpen(c.Request.Context(), c.Param("userId"))
	if !result.Success {
		var extra gin.H
		if result.Data.HasChannel {
			extra = gin.H{"channel": result.Data}
		}
		renderFailure(c, result.Code, result.Error, result.FallbackToL1, extra)
		return
	}
	c.Set("head_id", result.Data.HeadID)
	render(c, result, "")
}

func (s *Server) CloseChannel(c *gin.Context) {
	var req closeChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	c.Set("user_id", userID)
	result := s.payments.CloseChannel(c.Request.Context(), userID)
	if result.Success {
		c.Set("head_id", result.Data.HeadID)
	}
	render(c, result, "")
}

func (s *Server) HydraHealth(c *gin.Context) {
	result := s.payments.HealthCheck(c.Request.Context())
	if !result.Success {
		renderFailure(c, result.Code, result.Error, false, nil)
		return
	}
	c.JSON(http.StatusOK, result.Data)
}
