package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/farmqa/config"
	"github.com/cppla/farmqa/controllers"
	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/middleware"
	"github.com/cppla/farmqa/utils"
)

// Dependencies are the collaborators the HTTP layer needs.
type Dependencies struct {
	Config    config.AppConfig
	Service   *forum.Service
	Blacklist *utils.TokenBlacklist
	Logger    *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	binding.EnableDecoderDisallowUnknownFields = true

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Blacklist == nil {
		deps.Blacklist = utils.NewTokenBlacklist(nil)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	access := accessLogger(cfg, logger)
	r.Use(ginzap.GinzapWithConfig(access, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", c.GetString(middleware.ContextRequestIDKey))}
		},
	}))
	r.Use(ginzap.RecoveryWithZap(access, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "version": cfg.DeployVersion})
	})

	auth := middleware.NewAuthenticator(cfg, deps.Blacklist)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	postController := controllers.NewPostController(deps.Service, logger)
	voteController := controllers.NewVoteController(deps.Service, logger)
	statsController := controllers.NewStatsController(deps.Service, logger)
	authController := controllers.NewAuthController(deps.Blacklist, logger)

	api := r.Group("/api/v1")

	api.GET("/categories", statsController.ListCategories)
	api.GET("/stats", statsController.GetStats)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", auth.OptionalAuth(), postController.GetPost)
	api.GET("/posts/:id/answers", postController.ListAnswers)

	protected := api.Group("")
	protected.Use(auth.AuthRequired(), limiter.Middleware())
	protected.POST("/auth/logout", authController.Logout)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/lock", postController.LockPost)
	protected.POST("/posts/:id/answers", postController.CreateAnswer)
	protected.POST("/posts/:id/best-answer", postController.MarkBestAnswer)
	protected.DELETE("/answers/:answerId", postController.DeleteAnswer)
	protected.POST("/votes", voteController.CastVote)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	})

	return r
}

// accessLogger writes request logs to their own rolling file when GinPath is set.
func accessLogger(cfg config.AppConfig, base *zap.Logger) *zap.Logger {
	if cfg.GinPath == "" {
		return base.Named("http")
	}
	fileCfg := cfg
	fileCfg.LogPath = cfg.GinPath
	sink := zapcore.AddSync(utils.NewRollingFile(fileCfg))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapcore.InfoLevel)
	return zap.New(core).Named("http")
}
