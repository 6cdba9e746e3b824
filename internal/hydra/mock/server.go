package mock

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// Server exposes a Node over the node REST API plus a websocket push feed.
type Server struct {
	node     *Node
	bus      *events.Bus
	log      *zap.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

func NewServer(node *Node, bus *events.Bus, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		node: node,
		bus:  bus,
		log:  log.Named("hydra.mock.server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/", s.Info)
	r.POST("/commit", s.Commit)
	r.GET("/heads/:headId", s.GetHead)
	r.POST("/heads/:headId/transactions", s.SubmitTransaction)
	r.DELETE("/heads/:headId", s.CloseHead)
	r.GET("/transactions/:txId", s.GetTransaction)
	r.GET("/health", s.Health)
	r.GET("/ws", s.Stream)
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func failureStatus(f *hydra.Failure) int {
	switch {
	case f.NotFound:
		return http.StatusNotFound
	case f.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeFailure(c *gin.Context, f *hydra.Failure) {
	c.JSON(failureStatus(f), hydra.ErrorResponse{Success: false, Error: f.Reason, NotOpen: f.NotOpen})
}

func (s *Server) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Hydra Mock API",
		"version": "1.0.0",
		"status":  "running",
	})
}

func (s *Server) Commit(c *gin.Context) {
	var req hydra.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, hydra.ErrorResponse{Error: "invalid request body"})
		return
	}

	res, failure := s.node.InitHead(c.Request.Context(), req.Parties, req.UTxO.Amount)
	if failure != nil {
		writeFailure(c, failure)
		return
	}
	c.JSON(http.StatusOK, hydra.CommitResponse{
		Success: true,
		HeadID:  res.HeadID,
		Status:  res.Status,
		Message: "Head initialization started",
	})
}

func (s *Server) GetHead(c *gin.Context) {
	res, failure := s.node.GetStatus(c.Request.Context(), c.Param("headId"))
	if failure != nil {
		writeFailure(c, failure)
		return
	}
	c.JSON(http.StatusOK, hydra.HeadResponse{
		Success:          true,
		HeadID:           res.HeadID,
		Status:           res.Status,
		Balance:          res.BalanceLovelace,
		TransactionCount: res.TransactionCount,
		CreatedAt:        res.CreatedAt,
		OpenedAt:         res.OpenedAt,
		Parties:          res.Parties,
	})
}

func (s *Server) SubmitTransaction(c *gin.Context) {
	var req hydra.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, hydra.ErrorResponse{Error: "invalid request body"})
		return
	}

	res, failure := s.node.SubmitTransaction(c.Request.Context(), c.Param("headId"), req.Transaction)
	if failure != nil {
		writeFailure(c, failure)
		return
	}
	c.JSON(http.StatusOK, hydra.SubmitResponse{
		Success:          true,
		TransactionID:    res.TxHash,
		ConfirmedAt:      res.ConfirmedAt,
		ProcessingTimeMs: res.ProcessingTimeMs,
	})
}

func (s *Server) CloseHead(c *gin.Context) {
	res, failure := s.node.CloseHead(c.Request.Context(), c.Param("headId"))
	if failure != nil {
		writeFailure(c, failure)
		return
	}
	c.JSON(http.StatusOK, hydra.CloseResponse{
		Success:          true,
		TransactionID:    res.CloseTxHash,
		FinalBalance:     res.FinalBalanceLovelace,
		TransactionCount: res.TransactionCount,
		Message:          "Head closed and settled on L1",
	})
}

func (s *Server) GetTransaction(c *gin.Context) {
	tx, ok := s.node.Transaction(c.Param("txId"))
	if !ok {
		c.JSON(http.StatusNotFound, hydra.ErrorResponse{Error: "Transaction not found"})
		return
	}
	c.JSON(http.StatusOK, hydra.TransactionResponse{Success: true, Transaction: tx})
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.Health())
}

// Stream pushes every head event to the connected client as JSON.
func (s *Server) Stream(c *gin.Context) {
	// subscribe before the handshake so nothing published after dial is missed
	sub, _, err := s.bus.Subscribe(events.Wildcard, events.DefaultSubscriberBuffer)
	if err != nil {
		s.log.Warn("subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, hydra.ErrorResponse{Error: "event bus unavailable"})
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("websocket client connected", zap.String("remote", c.ClientIP()))

	// drain client frames so close and ping control messages are handled
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.log.Info("websocket client disconnected", zap.String("remote", c.ClientIP()))
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
