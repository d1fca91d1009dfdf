package handler

import (
	"github.com/gin-gonic/gin"

	"smartcheck-api/internal/application/rewrite"
	"smartcheck-api/internal/infrastructure/llm"
	"smartcheck-api/internal/interfaces/http/dto"
	apperrors "smartcheck-api/pkg/errors"
)

// SmartCheckHandler 研究改写流水线处理器
type SmartCheckHandler struct {
	pipeline *rewrite.Pipeline
}

// NewSmartCheckHandler 创建处理器
func NewSmartCheckHandler(pipeline *rewrite.Pipeline) *SmartCheckHandler {
	return &SmartCheckHandler{pipeline: pipeline}
}

// Run 执行一次研究改写流水线
// @Summary 事实核查并改写内容
// @Tags SmartCheck
// @Accept json
// @Produce json
// @Router /v1/smartcheck [post]
func (h *SmartCheckHandler) Run(c *gin.Context) {
	var req dto.SmartCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	runReq := &rewrite.Request{
		Content:      req.Content,
		Title:        req.Title,
		Keywords:     req.Keywords,
		Instructions: req.Instructions,
		Providers:    req.Providers,
	}
	if req.LLM != nil {
		runReq.Credential = &llm.Credential{
			BaseURL: req.LLM.BaseURL,
			APIKey:  req.LLM.APIKey,
			Model:   req.LLM.Model,
		}
	}

	result, err := h.pipeline.Run(c.Request.Context(), runReq)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.FromPipelineResult(result))
}
