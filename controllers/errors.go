package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/middleware"
	"github.com/cppla/farmqa/utils"
)

// Application codes. The first three digits repeat the HTTP status.
const (
	codeInvalidPayload = 40020
	codeInvalidParam   = 40021
	codeValidation     = 40022
	codeUnauthorized   = 40110
	codeForbidden      = 40310
	codeNotFound       = 40410
	codeConflict       = 40910
	codeLocked         = 42310
	codeInternal       = 50010
)

type errorMapping struct {
	kind   error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{forum.ErrValidation, http.StatusBadRequest, codeValidation},
	{forum.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized},
	{forum.ErrForbidden, http.StatusForbidden, codeForbidden},
	{forum.ErrNotFound, http.StatusNotFound, codeNotFound},
	{forum.ErrLocked, http.StatusLocked, codeLocked},
	{forum.ErrConflict, http.StatusConflict, codeConflict},
}

// respondError maps a service error to its envelope. Unknown errors are logged
// and reported without detail.
func respondError(ctx *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			utils.Error(ctx, m.status, m.code, forum.Reason(err))
			return
		}
	}
	logger.Error("request failed",
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.FullPath()),
		zap.String("request_id", ctx.GetString(middleware.ContextRequestIDKey)),
		zap.Error(err),
	)
	utils.Error(ctx, http.StatusInternalServerError, codeInternal, "internal server error")
}
