package main

import (
	"context"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/config"
	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/models"
	"github.com/cppla/farmqa/routes"
	"github.com/cppla/farmqa/utils"
)

func main() {
	configPath := pflag.String("config", config.DefaultPath, "path to the JSON configuration file")
	pflag.Parse()

	cfg := config.LoadPath(*configPath)

	logger, err := utils.InitLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rc, err := utils.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, caching and token revocation fall back to memory", zap.Error(err))
		rc = nil
	}
	cache := utils.NewRedisCache(rc, logger)

	if err := forum.SeedCategories(ctx, db, toCategories(cfg.Categories)); err != nil {
		logger.Fatal("seed categories failed", zap.Error(err))
	}
	taxonomy, err := forum.LoadTaxonomy(ctx, forum.DBCategorySource{DB: db}, cache, cfg.DeployVersion, logger)
	cancel()
	if err != nil {
		logger.Fatal("taxonomy load failed", zap.Error(err))
	}

	svc := forum.NewService(db, taxonomy, forum.Options{
		ExcerptLength:   cfg.ExcerptLength,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		MaxTags:         cfg.MaxTags,
		ListCacheTTL:    time.Duration(cfg.ListCacheTTLSeconds) * time.Second,
		AllowSelfVote:   cfg.AllowSelfVote,
		Cache:           cache,
		Logger:          logger,
	})

	r := routes.SetupRouter(routes.Dependencies{
		Config:    cfg,
		Service:   svc,
		Blacklist: utils.NewTokenBlacklist(rc),
		Logger:    logger,
	})

	logger.Info("starting server (graceful)", zap.String("port", cfg.AppPort), zap.String("db_driver", cfg.DBDriver))
	serveErr := utils.GraceServer(":"+cfg.AppPort, r)
	if rc != nil {
		_ = rc.Close()
	}
	if err := config.CloseDatabase(db); err != nil {
		logger.Warn("database close failed", zap.Error(err))
	}
	if serveErr != nil {
		logger.Fatal("server stopped with error", zap.Error(serveErr))
	}
}

func toCategories(in []config.CategoryConfig) []models.Category {
	out := make([]models.Category, len(in))
	for i, c := range in {
		out[i] = models.Category{ID: c.ID, Label: c.Label, Icon: c.Icon, Description: c.Description}
	}
	return out
}
