package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/utils"
)

// StatsController serves the taxonomy and forum totals.
type StatsController struct {
	svc    *forum.Service
	logger *zap.Logger
}

// NewStatsController creates a StatsController over svc.
func NewStatsController(svc *forum.Service, logger *zap.Logger) *StatsController {
	return &StatsController{svc: svc, logger: logger}
}

// ListCategories returns the categories in display order.
func (s *StatsController) ListCategories(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"items": s.svc.ListCategories()})
}

// GetStats returns aggregate counts for the forum.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.svc.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, s.logger, err)
		return
	}
	utils.Success(ctx, stats)
}
