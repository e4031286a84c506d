package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/ai-collective/backend/internal/handler/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/handler/logs"
	"github.com/zhouzirui/ai-collective/backend/internal/handler/persona"
	"github.com/zhouzirui/ai-collective/backend/internal/handler/settings"
	"github.com/zhouzirui/ai-collective/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/ai-collective/backend/internal/middleware"
	personaModel "github.com/zhouzirui/ai-collective/backend/internal/model/persona"
	chatService "github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/credential"
	logService "github.com/zhouzirui/ai-collective/backend/internal/service/logs"
	"github.com/zhouzirui/ai-collective/backend/pkg/utils"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Personas    personaModel.Store
	Chat        *chatService.Service
	Credentials *credential.Service
	Recorder    *logService.Recorder
	Logger      *zap.Logger

	// MessageRate 为零时不限制用户消息频率
	MessageRate  float64
	MessageBurst int
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	logger := svc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if svc.MessageRate > 0 {
		burst := svc.MessageBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(svc.MessageRate), burst)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"phase":  string(svc.Chat.Snapshot().Phase),
		})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(svc.Personas).RegisterRoutes(api)
		chat.New(svc.Chat, limiter).RegisterRoutes(api)
		settings.New(svc.Chat, svc.Credentials).RegisterRoutes(api)
		logs.New(svc.Recorder, logger.Named("logs")).RegisterRoutes(api)
		stream.New(svc.Chat, svc.Recorder, limiter, logger.Named("ws")).RegisterRoutes(api)
	})

	return r
}
