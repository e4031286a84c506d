package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	middlewarePkg "github.com/zhouzirui/ai-collective/backend/internal/middleware"
	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	limiter *rate.Limiter
}

// New 创建聊天处理器；limiter 限制用户发消息的频率，可为 nil
func New(chatSvc *chatService.Service, limiter *rate.Limiter) *Handler {
	return &Handler{chatSvc: chatSvc, limiter: limiter}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Get("/messages", h.handleListMessages)
	r.With(middlewarePkg.RateLimit(h.limiter)).Post("/messages", h.handleSendMessage)
	r.Get("/bots", h.handleListBots)
	r.Post("/chat/toggle", h.handleToggle)
}

// handleState 返回完整的会话快照
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

// handleListMessages 返回对话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Transcript())
}

// handleSendMessage 追加用户消息，机器人稍后异步回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.chatSvc.SubmitUserMessage(payload.Text)
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, chatService.ErrClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, "chat is shutting down")
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, msg)
}

// handleListBots 返回机器人及其输入状态
func (h *Handler) handleListBots(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Bots())
}

// handleToggle 暂停或恢复自主对话
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	paused := h.chatSvc.TogglePause()
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}
