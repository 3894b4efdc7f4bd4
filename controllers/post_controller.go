package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/middleware"
	"github.com/cppla/farmqa/utils"
)

// PostController serves posts, answers and best-answer selection.
type PostController struct {
	svc    *forum.Service
	logger *zap.Logger
}

// NewPostController creates a PostController over svc.
func NewPostController(svc *forum.Service, logger *zap.Logger) *PostController {
	return &PostController{svc: svc, logger: logger}
}

type postRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (r postRequest) toNewPost() forum.NewPost {
	return forum.NewPost{Title: r.Title, Body: r.Body, Category: r.Category, Tags: r.Tags}
}

// ListPosts returns one page of the filtered post list.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	q := forum.PostQuery{
		Category: ctx.Query("category"),
		Search:   ctx.Query("search"),
		Tag:      ctx.Query("tag"),
		Sort:     forum.SortOrder(ctx.Query("sort")),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := strings.TrimSpace(ctx.Query("resolved")); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, codeInvalidParam, "resolved must be true or false")
			return
		}
		q.Resolved = &resolved
	}
	if raw := strings.TrimSpace(ctx.Query("author")); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, codeInvalidParam, "author must be a user id")
			return
		}
		q.AuthorID = uint(author)
	}

	result, err := p.svc.QueryPosts(ctx.Request.Context(), q)
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, result)
}

// GetPost returns a post with its answers and counts one view.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	detail, err := p.svc.GetPostDetail(ctx.Request.Context(), id, middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, detail)
}

// CreatePost stores a new question.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if !bindJSON(ctx, &req) {
		return
	}
	post, err := p.svc.CreatePost(ctx.Request.Context(), req.toNewPost(), middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// UpdatePost edits a question the caller may manage.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req postRequest
	if !bindJSON(ctx, &req) {
		return
	}
	post, err := p.svc.UpdatePost(ctx.Request.Context(), id, req.toNewPost(), middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a question with its answers and votes.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := p.svc.DeletePost(ctx.Request.Context(), id, middleware.CurrentIdentity(ctx)); err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": id})
}

// LockPost opens or closes a question for new answers.
func (p *PostController) LockPost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Locked *bool `json:"locked"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	if req.Locked == nil {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidPayload, "locked is required")
		return
	}
	post, err := p.svc.SetLocked(ctx.Request.Context(), id, *req.Locked, middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// ListAnswers returns a question's answers, accepted answer first.
func (p *PostController) ListAnswers(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	answers, err := p.svc.ListAnswers(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"items": answers})
}

// CreateAnswer answers an unlocked question.
func (p *PostController) CreateAnswer(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	answer, err := p.svc.AddAnswer(ctx.Request.Context(), id, req.Body, middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Created(ctx, gin.H{"answer": answer})
}

// DeleteAnswer removes an answer the caller may manage.
func (p *PostController) DeleteAnswer(ctx *gin.Context) {
	id, ok := pathID(ctx, "answerId")
	if !ok {
		return
	}
	if err := p.svc.DeleteAnswer(ctx.Request.Context(), id, middleware.CurrentIdentity(ctx)); err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": id})
}

// MarkBestAnswer resolves a question.
func (p *PostController) MarkBestAnswer(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		AnswerID uint `json:"answer_id"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	if req.AnswerID == 0 {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidPayload, "answer_id is required")
		return
	}
	post, answer, err := p.svc.MarkBestAnswer(ctx.Request.Context(), id, req.AnswerID, middleware.CurrentIdentity(ctx))
	if err != nil {
		respondError(ctx, p.logger, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post, "answer": answer})
}

func bindJSON(ctx *gin.Context, dst interface{}) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidPayload, "invalid request payload")
		return false
	}
	return true
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 0)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidParam, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parsePagination ignores malformed values; the query engine clamps the rest.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page, size := 1, 0
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
		size = s
	}
	return page, size
}
