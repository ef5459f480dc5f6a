package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/auth"
	"VoxMind/backend/go/internal/memo"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/objectstore"
	"VoxMind/backend/go/internal/pipeline"
	"VoxMind/backend/go/internal/rag"
	"VoxMind/backend/go/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 允许上传的音频类型。与前端录音组件产出的格式保持一致。
var allowedAudioTypes = map[string]bool{
	"audio/webm": true,
	"audio/mp4":  true,
	"audio/wav":  true,
	"audio/mpeg": true,
	"audio/m4a":  true,
	"audio/x-m4a": true,
	"audio/aac":  true,
}

// HealthCheck 是单个依赖的健康检查函数。
type HealthCheck func(ctx context.Context) error

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	log          *logger.Logger
	orchestrator *pipeline.Orchestrator
	engine       *rag.Engine
	memos        *memo.Service
	audio        objectstore.ObjectStore
	publish      func(ctx context.Context, event pipeline.UploadEvent) error // 可选, Kafka 摄取
	maxUpload    int64
	checks       map[string]HealthCheck
}

// NewHandler 创建一个新的 Handler 实例。publish 为 nil 时上传不产生事件,
// 调用方需要显式调用 process 接口启动流水线。
func NewHandler(orchestrator *pipeline.Orchestrator, engine *rag.Engine, memos *memo.Service,
	audio objectstore.ObjectStore, publish func(ctx context.Context, event pipeline.UploadEvent) error,
	maxUploadMB int, checks map[string]HealthCheck, log *logger.Logger) *Handler {

	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{
		log:          log,
		orchestrator: orchestrator,
		engine:       engine,
		memos:        memos,
		audio:        audio,
		publish:      publish,
		maxUpload:    int64(maxUploadMB) << 20,
		checks:       checks,
	}
}

// statusFor 将错误分类映射到 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrEmptyQuestion),
		errors.Is(err, apperr.ErrExtractionFailed),
		errors.Is(err, apperr.ErrMissingRequiredField):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrUpstreamService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Upload 接收一段录音并写入对象存储。
// 校验大小上限与音频类型，生成不可猜测的对象键。
func (h *Handler) Upload(c *gin.Context) {
	ownerID := auth.OwnerID(c)

	if c.Request.ContentLength > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if fileHeader.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if int64(len(data)) > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	contentType := mimetype.Detect(data).String()
	if !allowedAudioTypes[contentType] {
		// 有些容器格式嗅探结果不稳定，回退到客户端声明的类型
		declared := fileHeader.Header.Get("Content-Type")
		if !allowedAudioTypes[declared] {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported audio type: %s", contentType)})
			return
		}
		contentType = declared
	}

	key := fmt.Sprintf("audio/%s/%s%s", ownerID, uuid.NewString(), path.Ext(fileHeader.Filename))
	if err := h.audio.Put(c.Request.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		h.log.WithError(err).Error("failed to store uploaded audio")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store audio"})
		return
	}

	if h.publish != nil {
		if err := h.publish(c.Request.Context(), pipeline.UploadEvent{OwnerID: ownerID, AudioRef: key}); err != nil {
			h.log.WithError(err).Error("failed to publish upload event")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue processing"})
			return
		}
	}

	c.JSON(http.StatusOK, models.AudioArtifact{
		ID:         key,
		StorageKey: key,
		MimeType:   contentType,
		SizeBytes:  int64(len(data)),
		UploadedAt: time.Now().UTC(),
	})
}

// ProcessRequest 定义了启动流水线请求的 JSON 结构。
type ProcessRequest struct {
	AudioRef string `json:"audioRef" binding:"required"`
}

// Process 为已上传的音频启动一次流水线运行。
func (h *Handler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID, err := h.orchestrator.Start(c.Request.Context(), auth.OwnerID(c), req.AudioRef)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runId": runID})
}

// RunStatus 返回一次运行的状态，完成时附带最终输出。
func (h *Handler) RunStatus(c *gin.Context) {
	run, err := h.orchestrator.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	// 运行记录按 owner 隔离
	if run.OwnerID != auth.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline run not found"})
		return
	}

	resp := gin.H{
		"runId":       run.RunID,
		"status":      run.Status,
		"currentStep": run.CurrentStep,
	}
	if run.Status == models.RunErrored {
		resp["error"] = run.LastError
	}
	if run.Status == models.RunComplete {
		result, err := h.orchestrator.Result(run)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["output"] = result
	}
	c.JSON(http.StatusOK, resp)
}

// ResumeRun 恢复一次失败的运行。
func (h *Handler) ResumeRun(c *gin.Context) {
	runID := c.Param("id")
	run, err := h.orchestrator.GetStatus(c.Request.Context(), runID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if run.OwnerID != auth.OwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline run not found"})
		return
	}

	if err := h.orchestrator.Resume(c.Request.Context(), runID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": runID})
}

// ChatRequest 定义了问答请求的 JSON 结构。
type ChatRequest struct {
	Question string `json:"question"`
}

// Chat 基于用户自己的备忘录回答问题。
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.engine.Answer(c.Request.Context(), auth.OwnerID(c), req.Question)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "질문을 입력해주세요"})
			return
		}
		h.log.WithError(err).Error("chat request failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// ListMemos 列出用户的备忘录，可选按分类过滤。
func (h *Handler) ListMemos(c *gin.Context) {
	var category models.Category
	if raw := c.Query("category"); raw != "" {
		parsed, err := models.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category = parsed
	}

	memos, err := h.memos.List(c.Request.Context(), auth.OwnerID(c), category)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if memos == nil {
		memos = []*models.MemoRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"memos": memos})
}

// GetMemo 返回单条备忘录。
func (h *Handler) GetMemo(c *gin.Context) {
	record, err := h.memos.Get(c.Request.Context(), auth.OwnerID(c), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteMemo 删除备忘录，并级联清理向量条目与音频。
func (h *Handler) DeleteMemo(c *gin.Context) {
	if err := h.memos.Delete(c.Request.Context(), auth.OwnerID(c), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Health 报告各个依赖的连通状态。
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": deps})
}
