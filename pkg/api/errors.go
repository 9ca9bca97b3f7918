package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 错误代码常量
const (
	ErrCodeInternalServerError = http.StatusInternalServerError // 服务器内部错误

	ErrCodeRuleNotFound    = http.StatusNotFound   // 规则不存在
	ErrCodeInvalidPayload  = http.StatusBadRequest // 规则配置无效
	ErrCodeInvalidFilter   = http.StatusBadRequest // 筛选表达式无效
	ErrCodeReconcileFailed = http.StatusBadGateway // 用户数据清理失败
)

// RuleError 自定义规则错误类型
type RuleError struct {
	Code    int         // HTTP 状态码
	Message string      // 错误消息
	Err     error       // 原始错误
	Data    interface{} // 附加数据（可选）
}

// Error 实现 error 接口
func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// NewRuleNotFoundError 创建规则不存在错误
func NewRuleNotFoundError(name string) *RuleError {
	return &RuleError{
		Code:    ErrCodeRuleNotFound,
		Message: fmt.Sprintf("规则 %s 不存在", name),
	}
}

// NewInvalidPayloadError 创建规则配置无效错误
func NewInvalidPayloadError(err error, data interface{}) *RuleError {
	return &RuleError{
		Code:    ErrCodeInvalidPayload,
		Message: "规则配置无效",
		Err:     err,
		Data:    data,
	}
}

// NewInvalidFilterError 创建筛选表达式无效错误
func NewInvalidFilterError(err error) *RuleError {
	return &RuleError{
		Code:    ErrCodeInvalidFilter,
		Message: "筛选表达式无效",
		Err:     err,
	}
}

// NewReconcileError 创建用户数据清理失败错误
func NewReconcileError(err error, data interface{}) *RuleError {
	return &RuleError{
		Code:    ErrCodeReconcileFailed,
		Message: "清理失效用户数据失败",
		Err:     err,
		Data:    data,
	}
}

// NewInternalServerError 创建服务器内部错误
func NewInternalServerError(err error) *RuleError {
	return &RuleError{
		Code:    ErrCodeInternalServerError,
		Message: "服务器内部错误",
		Err:     err,
	}
}

// HandleError 统一错误处理函数
func HandleError(c echo.Context, err error) error {
	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"path":       c.Request().URL.Path,
		"method":     c.Request().Method,
	}).Error("API 错误")

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		resp := Response{
			Code:    ruleErr.Code,
			Message: ruleErr.Message,
			Data:    ruleErr.Data,
		}
		if ruleErr.Err != nil && IsDebugMode() {
			resp.Data = map[string]interface{}{
				"error_detail": ruleErr.Err.Error(),
				"data":         ruleErr.Data,
			}
		}
		return c.JSON(ruleErr.Code, resp)
	}

	// 处理未知错误
	return c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "服务器内部错误",
	})
}

// debugMode 为true时在错误响应中附带详细错误
var debugMode bool

// SetDebugMode 设置调试模式
func SetDebugMode(enable bool) {
	debugMode = enable
}

// IsDebugMode 判断是否为调试模式
func IsDebugMode() bool {
	return debugMode
}
