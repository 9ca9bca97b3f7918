package ruleEngine

import (
	"errors"
	"fmt"
)

// 规则更新所处的阶段
const (
	StageParse     = "parse"
	StageReconcile = "reconcile"
)

// ErrConfigParse 配置内容不是合法的顶层json对象
var ErrConfigParse = errors.New("config payload is not a well-formed object")

// UpdateError 规则更新失败时返回的错误
type UpdateError struct {
	Stage string
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update rules failed at stage %s: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// IsConfigParseError 判断是否为配置解析失败
func IsConfigParseError(err error) bool {
	return errors.Is(err, ErrConfigParse)
}
