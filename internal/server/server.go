// Пакет server — HTTP-сервер Beryll Tracking Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yadro-qms/beryll-tracking/internal/api/handlers"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/config"
	"github.com/yadro-qms/beryll-tracking/internal/domain/rbac"
)

// Server — HTTP-сервер Beryll Tracking Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics"))
	}

	registerRoutes(router, h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Роли в порядке возрастания прав; guard-наборы для маршрутов.
var (
	anyRole     = []string{rbac.RoleReadonly, rbac.RoleEngineer, rbac.RoleInspector, rbac.RoleAdmin}
	engineerUp  = []string{rbac.RoleEngineer, rbac.RoleInspector, rbac.RoleAdmin}
	inspectorUp = []string{rbac.RoleInspector, rbac.RoleAdmin}
	adminOnly   = []string{rbac.RoleAdmin}

	readScopes  = []string{rbac.ScopeRead, rbac.ScopeWrite}
	writeScopes = []string{rbac.ScopeWrite}
)

// registerRoutes описывает все маршруты API. RBAC навешивается на
// уровне маршрутов: чтение доступно любой роли (или SA с beryll:read),
// мутации — engineer+, решения по верификации — inspector+, удаление,
// архивация и role overrides — только admin.
func registerRoutes(router chi.Router, h *handlers.APIHandler) {
	// Публичные endpoints (вне JWT)
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/servers", func(r chi.Router) {
			r.With(middleware.RequireRoleOrScope(anyRole, readScopes)).Get("/", h.ListServers)
			r.With(middleware.RequireRoleOrScope(engineerUp, writeScopes)).Post("/", h.CreateServer)

			r.Route("/{serverId}", func(r chi.Router) {
				read := r.With(middleware.RequireRoleOrScope(anyRole, readScopes))
				write := r.With(middleware.RequireRoleOrScope(engineerUp, writeScopes))

				read.Get("/", h.GetServer)
				write.Patch("/", h.UpdateServer)
				write.Post("/status", h.ChangeServerStatus)
				r.With(middleware.RequireRole(adminOnly...)).Post("/archive", h.ArchiveServer)

				read.Get("/history", h.ServerHistory)

				read.Get("/components", h.ListComponents)
				write.Post("/components", h.AddComponent)
				write.Post("/components/batch", h.BatchAddComponents)

				read.Get("/checklist", h.ServerChecklist)
				write.Put("/checklist/{templateId}", h.SetChecklistItem)

				read.Get("/approvals", h.ListServerApprovals)
				write.Post("/approvals", h.SubmitApproval)

				read.Get("/stages", h.ServerStages)
				read.Get("/stages/{stageCode}", h.ServerStageCompletion)
			})
		})

		r.Route("/components", func(r chi.Router) {
			read := r.With(middleware.RequireRoleOrScope(anyRole, readScopes))
			write := r.With(middleware.RequireRoleOrScope(engineerUp, writeScopes))

			read.Get("/search", h.SearchComponents)
			read.Get("/scan", h.ScanSerial)
			read.Get("/check-serial", h.CheckSerial)

			read.Get("/{componentId}", h.GetComponent)
			write.Patch("/{componentId}", h.UpdateComponent)
			write.Put("/{componentId}/serials", h.UpdateComponentSerials)
			write.Post("/{componentId}/replace", h.ReplaceComponent)
			r.With(middleware.RequireRole(adminOnly...)).Delete("/{componentId}", h.DeleteComponent)
		})

		r.Route("/approvals", func(r chi.Router) {
			inspector := r.With(middleware.RequireRole(inspectorUp...))

			inspector.Get("/queue", h.ApprovalQueue)
			inspector.Get("/stats", h.ApprovalStats)
			r.With(middleware.RequireRoleOrScope(anyRole, readScopes)).Get("/{approvalId}", h.GetApproval)
			inspector.Post("/{approvalId}/approve", h.ApproveApproval)
			inspector.Post("/{approvalId}/reject", h.RejectApproval)
		})

		r.With(middleware.RequireRoleOrScope(anyRole, readScopes)).
			Get("/checklists/templates", h.ChecklistTemplates)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.GetMe)

			admin := r.With(middleware.RequireRole(adminOnly...))
			admin.Get("/role-overrides", h.ListRoleOverrides)
			admin.Put("/role-overrides/{userId}", h.SetRoleOverride)
			admin.Delete("/role-overrides/{userId}", h.DeleteRoleOverride)
		})
	})
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем JWT middleware
			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
