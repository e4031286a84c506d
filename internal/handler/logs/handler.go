package logs

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	logService "github.com/zhouzirui/ai-collective/backend/internal/service/logs"
	"github.com/zhouzirui/ai-collective/backend/pkg/utils"
)

const (
	streamBuffer      = 64
	keepAliveInterval = 15 * time.Second
)

// Handler 诊断日志的HTTP处理器
type Handler struct {
	recorder *logService.Recorder
	logger   *zap.Logger
}

// New 创建日志处理器
func New(recorder *logService.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{recorder: recorder, logger: logger}
}

// RegisterRoutes 注册日志相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs", h.handleList)
	r.Get("/logs/stream", h.handleStream)
}

// parseLevels 解析 ?level=INFO,API 形式的过滤参数
func parseLevels(raw string) ([]logService.Level, error) {
	var levels []logService.Level
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		level, err := logService.ParseLevel(part)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// handleList 按级别过滤返回日志，未指定级别时返回全部
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	levels, err := parseLevels(r.URL.Query().Get("level"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.recorder.Filter(levels...))
}

// handleStream 以 SSE 推送新日志；慢速客户端会丢弃条目而不是阻塞记录器
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	levels, err := parseLevels(r.URL.Query().Get("level"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	wanted := make(map[logService.Level]struct{}, len(levels))
	for _, l := range levels {
		wanted[l] = struct{}{}
	}
	match := func(e logService.Entry) bool {
		if len(wanted) == 0 {
			return true
		}
		_, ok := wanted[e.Level]
		return ok
	}

	entries := make(chan logService.Entry, streamBuffer)
	unsubscribe := h.recorder.Subscribe(func(e logService.Entry) {
		if !match(e) {
			return
		}
		select {
		case entries <- e:
		default:
		}
	})
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", h.recorder.Filter(levels...)); err != nil {
		h.logger.Debug("log stream closed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-entries:
			if err := utils.SendSSEEvent(w, flusher, "log", e); err != nil {
				h.logger.Debug("log stream closed", zap.Error(err))
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, fmt.Sprintf("keepalive %d", t.Unix())); err != nil {
				return
			}
		}
	}
}
