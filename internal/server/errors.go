package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
)

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrNotFound           = errors.New("not_found")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ResultError carries a failed façade result through gin's error list so the
// request logger can classify it.
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string {
	return e.Code + ": " + e.Message
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// ErrorHandlingMiddleware renders errors attached by handlers that did not
// write a body themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	var resultErr *ResultError
	switch {
	case errors.As(err, &resultErr):
		return statusFor(resultErr.Code), errorResponse{Error: resultErr.Message, Code: resultErr.Code}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: "Invalid request body", Code: paymentdomain.CodeInvalidRequest}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Not found", Code: "not_found"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "Service unavailable", Code: "service_unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: paymentdomain.CodeInternal}
	}
}

// statusFor maps a façade result code onto an HTTP status.
func statusFor(code string) int {
	switch code {
	case paymentdomain.CodeInvalidUser,
		paymentdomain.CodeInvalidDeposit,
		paymentdomain.CodeInvalidAmount,
		paymentdomain.CodeInvalidRequest,
		paymentdomain.CodeNoOpenChannel,
		paymentdomain.CodeInsufficientBalance:
		return http.StatusBadRequest
	case paymentdomain.CodeNoOpenChannelToClose,
		paymentdomain.CodePaymentNotFound:
		return http.StatusNotFound
	case paymentdomain.CodeDuplicatePayment:
		return http.StatusConflict
	case paymentdomain.CodeCanceled:
		return http.StatusRequestTimeout
	case paymentdomain.CodeTransportUnavailable:
		return http.StatusServiceUnavailable
	case paymentdomain.CodeOpenTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func classifyErrorForLog(err error) (string, string) {
	var resultErr *ResultError
	if errors.As(err, &resultErr) {
		if statusFor(resultErr.Code) >= http.StatusInternalServerError {
			return "server", resultErr.Code
		}
		return "client", resultErr.Code
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server", payload.Code
	}
	return "client", payload.Code
}

// render writes a façade result. Successful data is flattened next to the
// success flag; when key is set it is nested under that key instead.
func render[T any](c *gin.Context, result paymentdomain.Result[T], key string) {
	if !result.Success {
		renderFailure(c, result.Code, result.Error, result.FallbackToL1, nil)
		return
	}

	body := gin.H{}
	if key != "" {
		body[key] = result.Data
	} else {
		fields, err := flatten(result.Data)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		body = fields
	}
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func renderFailure(c *gin.Context, code, message string, fallback bool, extra gin.H) {
	_ = c.Error(&ResultError{Code: code, Message: message})

	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	body["success"] = false
	body["error"] = message
	body["code"] = code
	if fallback {
		body["fallbackToL1"] = true
	}
	c.JSON(statusFor(code), body)
}

// flatten re-reads a value's JSON as an object, keeping numbers verbatim so
// decimal amounts survive the round trip.
func flatten(v any) (gin.H, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := gin.H{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
