// Точка входа Beryll Tracking Module — подсистема учёта сборки серверов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт сервисный слой и API handlers, запускает мониторинг зависимостей
// (topologymetrics), HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/yadro-qms/beryll-tracking/internal/api/handlers"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/config"
	"github.com/yadro-qms/beryll-tracking/internal/database"
	"github.com/yadro-qms/beryll-tracking/internal/domain/rbac"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
	"github.com/yadro-qms/beryll-tracking/internal/server"
	"github.com/yadro-qms/beryll-tracking/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Beryll Tracking Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("BT_DEPHEALTH_GROUP") == "" {
		logger.Warn("BT_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories и транзакционный раннер.
	// Репозитории над пулом — для читающих операций; мутации создают
	// репозитории над транзакцией внутри TxRunner.RunInTx.
	serverRepo := repository.NewServerRepository(pool)
	componentRepo := repository.NewComponentRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	checklistRepo := repository.NewChecklistRepository(pool)
	roleRepo := repository.NewRoleOverrideRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Services
	serversSvc := service.NewServerService(serverRepo, componentRepo, historyRepo, txRunner, logger)
	componentsSvc := service.NewComponentService(serverRepo, componentRepo, txRunner, cfg.BatchMaxItems, logger)
	checklistsSvc := service.NewChecklistService(checklistRepo, serverRepo, txRunner,
		cfg.ChecklistCacheSize, cfg.ChecklistCacheTTL, logger)
	approvalsSvc := service.NewApprovalService(approvalRepo, serverRepo, checklistsSvc, txRunner, logger)
	historySvc := service.NewHistoryService(historyRepo, serverRepo, logger)
	usersSvc := service.NewUserService(roleRepo, logger)

	// 7. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 8. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		serversSvc,
		componentsSvc,
		approvalsSvc,
		checklistsSvc,
		historySvc,
		usersSvc,
		logger,
	)

	// 9. JWT middleware. UserService поставляет role overrides из БД.
	groupMapping := rbac.GroupMapping{
		AdminGroups:     cfg.RoleAdminGroups,
		InspectorGroups: cfg.RoleInspectorGroups,
		EngineerGroups:  cfg.RoleEngineerGroups,
		ReadonlyGroups:  cfg.RoleReadonlyGroups,
	}

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		usersSvc,
		groupMapping,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"beryll-tracking",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Beryll Tracking Module остановлен")
}
