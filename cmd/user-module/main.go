// Точка входа User Module — backend управления пользователями.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует Keycloak-клиент и Redis-кэш, создаёт сервисный слой и
// API handlers, запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/user-module/internal/api/handlers"
	"github.com/bigkaa/user-module/internal/api/middleware"
	"github.com/bigkaa/user-module/internal/cache"
	"github.com/bigkaa/user-module/internal/config"
	"github.com/bigkaa/user-module/internal/database"
	"github.com/bigkaa/user-module/internal/keycloak"
	"github.com/bigkaa/user-module/internal/repository"
	"github.com/bigkaa/user-module/internal/server"
	"github.com/bigkaa/user-module/internal/service"
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
	logger.Info("User Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

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

	// 5. Keycloak клиент (OIDC endpoints + Admin REST API)
	kcClient := keycloak.New(
		cfg.KeycloakURL,
		cfg.KeycloakRealm,
		cfg.KeycloakClientID,
		cfg.KeycloakAdminUser,
		cfg.KeycloakAdminPassword,
		nil, // стандартный HTTP-клиент
		logger,
	)
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("realm", cfg.KeycloakRealm),
	)

	// 6. Redis-кэш списочных ответов (опционально)
	var listCache *middleware.ListCache
	var redisChecker handlers.ReadinessChecker
	if cfg.RedisAddr != "" {
		redisCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL, logger)
		defer redisCache.Close()

		listCache = middleware.NewListCache(redisCache, []string{"/api/v1/users", "/api/v1/roles"}, logger)
		redisChecker = redisCache
		logger.Info("Redis-кэш включён",
			slog.String("addr", cfg.RedisAddr),
			slog.String("ttl", cfg.CacheTTL.String()),
		)
	} else {
		logger.Info("Redis-кэш отключён (UM_REDIS_ADDR не задан)")
	}

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewUserProfileRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	masterRoleRepo := repository.NewMasterRoleRepository(pool)
	addressRepo := repository.NewAddressRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Services
	usersSvc := service.NewUsersService(kcClient, txRunner, userRepo, profileRepo, roleRepo, masterRoleRepo, logger)
	authSvc := service.NewAuthService(kcClient, userRepo, profileRepo, logger)
	rolesSvc := service.NewRolesService(masterRoleRepo, logger)
	addressesSvc := service.NewAddressesService(addressRepo, logger)

	// 9. Readiness checkers (PostgreSQL + Keycloak + Redis)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, kcClient, redisChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		usersSvc,
		authSvc,
		rolesSvc,
		addressesSvc,
		logger,
	)

	// 11. Auth middleware (userinfo introspection + опциональная локальная
	// валидация JWT через JWKS)
	authMiddleware, err := middleware.NewAuth(
		kcClient,
		cfg.JWTLocalValidation,
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания auth middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Auth middleware инициализирован",
		slog.Bool("local_validation", cfg.JWTLocalValidation),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:       "user-module",
		Group:           cfg.DephealthGroup,
		DB:              pgDB,
		PGConnURL:       cfg.DatabaseDSN(),
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		CheckInterval:   cfg.DephealthCheckInterval,
		IsEntry:         cfg.DephealthIsEntry,
	}, logger)
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

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, authMiddleware, listCache)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("User Module остановлен")
}
