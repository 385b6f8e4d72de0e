package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draftdeck/draftdeck/handlers"
	"github.com/draftdeck/draftdeck/internal/config"
	"github.com/draftdeck/draftdeck/internal/database"
	"github.com/draftdeck/draftdeck/internal/document"
	dochandler "github.com/draftdeck/draftdeck/internal/document/handler"
	"github.com/draftdeck/draftdeck/internal/document/repository"
	docservice "github.com/draftdeck/draftdeck/internal/document/service"
	"github.com/draftdeck/draftdeck/internal/importer"
	"github.com/draftdeck/draftdeck/internal/importjob"
	"github.com/draftdeck/draftdeck/internal/oidc"
	"github.com/draftdeck/draftdeck/internal/payment"
	"github.com/draftdeck/draftdeck/internal/storage"
	"github.com/draftdeck/draftdeck/pkg/logger"
	"github.com/draftdeck/draftdeck/pkg/metrics"
	"github.com/draftdeck/draftdeck/pkg/middleware"
)

var startTime = time.Now()

// logNotifier writes send notifications to the log. Deployments front this
// with a real mail gateway; the signing links in the send response are the
// authoritative delivery channel either way.
type logNotifier struct{}

func (logNotifier) NotifyRecipient(ctx context.Context, d *document.Document, r *document.Recipient, message, link string) error {
	logger.Infof("notify %s (%s) for document %s: %s", r.Email, r.Role, d.ID, link)
	return nil
}

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: oidc=%v mongo=%v redis=%v provider=%v",
		cfg.OIDC.IssuerURL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Provider.BaseURL != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple; production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Connect to Redis early so the rate limiter and the import job store can
	// use it when configured.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Token verifier: OIDC issuer when configured, static HMAC secret as the
	// lightweight alternative, and an explicitly opted-in insecure parser for
	// integration tests.
	ctx := context.Background()
	var verifier middleware.Verifier
	if cfg.OIDC.IssuerURL != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.IssuerURL, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.OIDC.HMACSecret != "" {
		ver, err := oidc.NewHMACVerifier(cfg.OIDC.HMACSecret)
		if err != nil {
			logger.Warnf("failed to initialize HMAC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		}
	}

	// Document repository: MongoDB when configured, in-memory fallback so the
	// service stays usable for local work.
	var docRepo repository.Repository
	var payRepo payment.Repository
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		// Retry/backoff when connecting to MongoDB to tolerate startup races
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			db := mongoClient.Database(cfg.MongoDB.Database)
			docRepo = repository.NewMongoRepo(db.Collection("documents"))
			payRepo = payment.NewMongoRepo(db.Collection("payments"))
			logger.Infof("using MongoDB document storage: %s", cfg.MongoDB.Database)
		}
	}
	if docRepo == nil {
		docRepo = repository.NewMemoryRepo()
		payRepo = payment.NewMemoryRepo()
		logger.Warn("using in-memory document storage; documents will not survive restarts")
	}

	gate := payment.NewGate(payRepo)
	docSvc := docservice.New(docRepo, gate, logNotifier{}, cfg.Signing.BaseURL)

	// Import job store: Redis with TTL when available so job state survives
	// restarts and is shared across replicas.
	var jobStore importjob.Store
	if redisClient != nil {
		jobStore = importjob.NewRedisStore(redisClient, "importjob:", cfg.Import.JobTTL)
	} else {
		jobStore = importjob.NewMemoryStore()
		logger.Warn("using in-memory import job store")
	}

	// Optional raw-payload archive for imported items.
	var archive importer.Archiver
	if acfg := storage.LoadArchiveConfig(); acfg.Endpoint != "" {
		st, err := storage.NewArchiveStorage(acfg)
		if err != nil {
			logger.Warnf("import archive disabled: %v", err)
		} else {
			archive = st
			logger.Infof("import archive enabled: bucket %s", acfg.Bucket)
		}
	}

	// Provider client for imports. Refreshed tokens are only held in memory;
	// the configured refresh token stays the recovery path after a restart.
	var importSvc *importer.Service
	if cfg.Provider.BaseURL != "" {
		client := importer.NewClient(cfg.Provider.BaseURL, cfg.Provider.AccessToken, cfg.Provider.RefreshToken)
		client.OnTokenRefresh(func(accessToken, refreshToken string) {
			logger.Infof("provider access token refreshed")
		})
		importSvc = importer.NewService(client, jobStore, docSvc, archive)
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint: 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["storage"] = docRepo != nil
		deps["importer"] = importSvc != nil

		if cfg.OIDC.IssuerURL != "" {
			deps["oidc"] = verifier != nil
			if verifier == nil {
				ready = false
			}
		} else {
			deps["oidc"] = true
		}

		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil
			if redisClient == nil {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// API surface. The sender API requires auth when a verifier is
	// configured; the /sign surface is authenticated by access token alone.
	api := r.Group("/")
	if verifier != nil {
		api.Use(pathPrefixAuth(verifier, "/api/"))
	}
	dochandler.RegisterDocumentRoutes(api, docSvc, gate)
	if importSvc != nil {
		importer.RegisterRoutes(api, importSvc)
	}

	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Periodic sweep marking overdue documents expired. The derived status
	// already reports expiry between sweeps; this persists it.
	go func() {
		ticker := time.NewTicker(cfg.Import.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			n, err := docSvc.ExpireOverdue(context.Background(), time.Now().UTC())
			if err != nil {
				logger.Warnf("expiration sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("expiration sweep: %d documents expired", n)
			}
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting document service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// pathPrefixAuth applies bearer auth only to routes under the given prefix,
// leaving the token-link signing surface public.
func pathPrefixAuth(ver middleware.Verifier, prefix string) gin.HandlerFunc {
	authed := middleware.AuthMiddleware(ver)
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			authed(c)
			return
		}
		c.Next()
	}
}
