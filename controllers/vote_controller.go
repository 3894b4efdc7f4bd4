package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/middleware"
	"github.com/cppla/farmqa/utils"
)

// VoteController toggles votes on posts and answers.
type VoteController struct {
	svc    *forum.Service
	logger *zap.Logger
}

// NewVoteController creates a VoteController over svc.
func NewVoteController(svc *forum.Service, logger *zap.Logger) *VoteController {
	return &VoteController{svc: svc, logger: logger}
}

// CastVote applies one up or down click and returns the new net score.
func (v *VoteController) CastVote(ctx *gin.Context) {
	var req struct {
		ItemID    uint   `json:"item_id"`
		ItemType  string `json:"item_type"`
		Direction string `json:"direction"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	result, err := v.svc.CastVote(ctx.Request.Context(), req.ItemType, req.ItemID, req.Direction, middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, v.logger, err)
		return
	}
	utils.Success(ctx, result)
}
