package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/credential"
	"github.com/zhouzirui/ai-collective/backend/internal/service/logs"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	outboxSize   = 128
)

// Handler 通过 WebSocket 推送会话状态与日志，并接收前端命令
type Handler struct {
	chatSvc  *chatService.Service
	recorder *logs.Recorder
	logger   *zap.Logger
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
}

// New 创建 WebSocket 处理器；limiter 与 REST 接口共享用户消息配额，可为 nil
func New(chatSvc *chatService.Service, recorder *logs.Recorder, limiter *rate.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:  chatSvc,
		recorder: recorder,
		logger:   logger,
		limiter:  limiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection 每个连接只有一个写协程，其它协程通过 outbox 投递
type connection struct {
	conn   *websocket.Conn
	outbox chan outgoingMessage
	ctx    context.Context
}

// send 非阻塞投递；慢速客户端会丢消息而不是阻塞会话
func (c *connection) send(msgType string, data interface{}) bool {
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case <-c.ctx.Done():
		return false
	case c.outbox <- msg:
		return true
	default:
		return false
	}
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &connection{
		conn:   conn,
		outbox: make(chan outgoingMessage, outboxSize),
		ctx:    ctx,
	}

	h.logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))

	stopState := h.chatSvc.Subscribe(func(s chatService.Snapshot) {
		c.send("state", s)
	})
	defer stopState()
	stopLogs := h.recorder.Subscribe(func(e logs.Entry) {
		c.send("log", e)
	})
	defer stopLogs()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c)
		cancel()
	}()

	c.send("state", h.chatSvc.Snapshot())

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(c, &msg)
	}

	cancel()
	<-writerDone
	h.logger.Debug("websocket disconnected", zap.String("remote", r.RemoteAddr))
}

// writeLoop 串行写出 outbox 中的消息并定期发送 ping
func (h *Handler) writeLoop(c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 分发前端命令
func (h *Handler) handleMessage(c *connection, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid message payload")
			return
		}
		if h.limiter != nil && !h.limiter.Allow() {
			h.sendError(c, "too many messages, slow down")
			return
		}
		sent, err := h.chatSvc.SubmitUserMessage(payload.Text)
		if err != nil {
			h.sendError(c, err.Error())
			return
		}
		c.send("ack", map[string]any{"command": msg.Type, "message": sent})

	case "toggle":
		paused := h.chatSvc.TogglePause()
		c.send("ack", map[string]any{"command": msg.Type, "paused": paused})

	case "settings":
		var payload struct {
			Open *bool `json:"open"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Open == nil {
			h.sendError(c, "open is required")
			return
		}
		if err := h.chatSvc.SetSettingsOpen(*payload.Open); err != nil {
			h.sendError(c, err.Error())
			return
		}
		c.send("ack", map[string]any{"command": msg.Type, "open": *payload.Open})

	case "credential":
		var payload struct {
			APIKey string `json:"apiKey"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid credential payload")
			return
		}
		if err := h.chatSvc.SaveCredential(c.ctx, payload.APIKey); err != nil {
			if errors.Is(err, credential.ErrEmptyCredential) {
				h.sendError(c, "apiKey is required")
				return
			}
			h.logger.Error("failed to save api key", zap.Error(err))
			h.sendError(c, "failed to save api key")
			return
		}
		c.send("ack", map[string]any{"command": msg.Type})

	default:
		h.sendError(c, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) sendError(c *connection, message string) {
	c.send("error", map[string]string{"message": message})
}
