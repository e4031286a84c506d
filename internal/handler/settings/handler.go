package settings

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/credential"
	"github.com/zhouzirui/ai-collective/backend/pkg/utils"
)

// Handler 设置（API 凭证与设置对话框）的HTTP处理器
type Handler struct {
	chatSvc     *chatService.Service
	credentials *credential.Service
}

// New 创建设置处理器
func New(chatSvc *chatService.Service, credentials *credential.Service) *Handler {
	return &Handler{chatSvc: chatSvc, credentials: credentials}
}

// RegisterRoutes 注册设置相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/api-key", h.handleSaveKey)
		r.Put("/dialog", h.handleDialog)
	})
}

type settingsResponse struct {
	HasAPIKey bool   `json:"hasApiKey"`
	MaskedKey string `json:"maskedKey,omitempty"`
	Open      bool   `json:"open"`
}

func (h *Handler) current() settingsResponse {
	return settingsResponse{
		HasAPIKey: h.credentials.HasKey(),
		MaskedKey: h.credentials.Masked(),
		Open:      h.chatSvc.Snapshot().SettingsOpen,
	}
}

// handleGet 返回凭证状态（仅掩码）
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.current())
}

// handleSaveKey 保存新的 API 凭证
func (h *Handler) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chatSvc.SaveCredential(r.Context(), payload.APIKey); err != nil {
		if errors.Is(err, credential.ErrEmptyCredential) {
			utils.RespondError(w, http.StatusBadRequest, "apiKey is required")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to save api key")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.current())
}

// handleDialog 打开或关闭设置对话框；无凭证时不允许关闭
func (h *Handler) handleDialog(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Open *bool `json:"open"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil || payload.Open == nil {
		utils.RespondError(w, http.StatusBadRequest, "open is required")
		return
	}

	if err := h.chatSvc.SetSettingsOpen(*payload.Open); err != nil {
		if errors.Is(err, chatService.ErrCredentialRequired) {
			utils.RespondError(w, http.StatusConflict, "an api key is required before closing settings")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.current())
}
