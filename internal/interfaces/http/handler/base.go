// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"smartcheck-api/internal/interfaces/http/dto"
	apperrors "smartcheck-api/pkg/errors"
	"smartcheck-api/pkg/logger"
)

// respondError 将应用错误映射为 HTTP 错误响应。
// 非调试部署下对外只返回安全消息，内部细节进日志。
func respondError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)

	logger.Error(c.Request.Context(), "request failed", err,
		"code", string(appErr.Code),
		"path", c.Request.URL.Path,
	)

	detail := &dto.ErrorDetail{ErrorCode: string(appErr.Code)}
	if appErr.Detail != "" {
		detail.Details = appErr.Detail
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}
