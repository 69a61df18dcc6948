package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/alumbra-io/aulakey/internal/apikey"
	"github.com/alumbra-io/aulakey/internal/cache"
	"github.com/alumbra-io/aulakey/internal/config"
	httpx "github.com/alumbra-io/aulakey/internal/http"
	apikeyctrl "github.com/alumbra-io/aulakey/internal/http/controllers/apikey"
	authctrl "github.com/alumbra-io/aulakey/internal/http/controllers/auth"
	healthctrl "github.com/alumbra-io/aulakey/internal/http/controllers/health"
	"github.com/alumbra-io/aulakey/internal/http/router"
	apikeysvc "github.com/alumbra-io/aulakey/internal/http/services/apikey"
	authsvc "github.com/alumbra-io/aulakey/internal/http/services/auth"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/rate"
	"github.com/alumbra-io/aulakey/internal/store"
	storememory "github.com/alumbra-io/aulakey/internal/store/memory"
	storepg "github.com/alumbra-io/aulakey/internal/store/pg"
	"github.com/alumbra-io/aulakey/internal/token"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
)

func main() {
	// .env es opcional: en producción todo llega por entorno real.
	if err := godotenv.Load(); err != nil {
		log.Printf("sin archivo .env, usando solo el entorno: %v", err)
	}

	var cfgPath string
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "ruta del config.yaml")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "aulakey",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Fatal("el servicio terminó con error", logger.Err(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	users, err := buildUserStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	defer users.Close()

	codec, err := token.NewCodec([]byte(cfg.JWT.Secret), cfg.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	issuer := token.NewIssuer(codec, cfg.JWT.Issuer, cfg.AccessTTL())
	refresh := token.NewRefreshManager(cacheClient, cfg.RefreshTTL())
	blacklist := token.NewBlacklist(cacheClient)
	keys := apikey.NewManager(cacheClient)

	authService := authsvc.NewService(authsvc.Deps{
		Users:     users,
		Issuer:    issuer,
		Codec:     codec,
		Refresh:   refresh,
		Blacklist: blacklist,
	})
	keyService := apikeysvc.NewService(keys)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler, err = metrics.Register(nil)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	authLimiter, apiLimiter := buildLimiters(cfg)

	downstream, err := buildDownstream(cfg)
	if err != nil {
		return err
	}

	handler := router.New(router.Deps{
		Token:       authctrl.NewTokenController(authService),
		Session:     authctrl.NewSessionController(authService),
		APIKeys:     apikeyctrl.NewController(keyService),
		Health:      healthctrl.NewController(users, cacheClient),
		Keys:        keys,
		Codec:       codec,
		Blacklist:   blacklist,
		AuthLimiter: authLimiter,
		APILimiter:  apiLimiter,
		Metrics:     metricsHandler,
		Downstream:  downstream,
	})

	srv := httpx.NewServer(cfg.Server.Addr, handler)
	return srv.Run(ctx)
}

func buildUserStore(ctx context.Context, cfg *config.Config) (store.UserStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return storepg.New(ctx, cfg.Storage.DSN, storepg.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
	case "memory":
		return storememory.New(), nil
	default:
		return nil, fmt.Errorf("driver de storage desconocido: %q", cfg.Storage.Driver)
	}
}

func buildLimiters(cfg *config.Config) (rate.Limiter, rate.Limiter) {
	if !cfg.Rate.Enabled {
		return nil, nil
	}

	if cfg.Cache.Driver == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:auth:", cfg.Rate.Auth.Limit, cfg.AuthWindow()),
			rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:api:", cfg.Rate.API.Limit, cfg.APIWindow())
	}

	return rate.NewMemoryLimiter(cfg.Rate.Auth.Limit, cfg.AuthWindow()),
		rate.NewMemoryLimiter(cfg.Rate.API.Limit, cfg.APIWindow())
}

// buildDownstream arma el reverse proxy hacia el upstream configurado. Los
// requests llegan con la identidad ya resuelta en headers por el borde.
func buildDownstream(cfg *config.Config) (http.Handler, error) {
	if cfg.Edge.UpstreamURL == "" {
		return nil, nil
	}
	target, err := url.Parse(cfg.Edge.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("edge.upstream_url: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.From(r.Context()).Error("proxy hacia upstream falló", logger.Err(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
