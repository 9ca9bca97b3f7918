package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/haolipeng/metadata_rule_matcher/pkg/ruleEngine"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 响应结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RulesData 规则列表响应
type RulesData struct {
	Generation uint64                     `json:"generation"`
	Rules      []*ruleEngine.MetadataRule `json:"rules"`
}

// RuleService 规则服务
type RuleService struct {
	store *ruleEngine.RuleStore
}

// NewRuleService 创建一个新的规则服务
func NewRuleService(store *ruleEngine.RuleStore) *RuleService {
	return &RuleService{
		store: store,
	}
}

// GetRules 获取当前规则，支持filter查询参数（CEL表达式）
func (rs *RuleService) GetRules(c echo.Context) error {
	generation := rs.store.Generation()
	rules := rs.store.GetRules()

	expression := c.QueryParam("filter")
	if expression != "" {
		filter, err := ruleEngine.NewRuleFilter(expression)
		if err != nil {
			return HandleError(c, NewInvalidFilterError(err))
		}
		total := len(rules)
		rules, err = filter.Apply(rules)
		if err != nil {
			return HandleError(c, NewInvalidFilterError(err))
		}

		logrus.WithFields(logrus.Fields{
			"total_rules":    total,
			"filtered_rules": len(rules),
			"filter":         expression,
			"operation":      "filter_rules",
		}).Debug("过滤规则")
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取规则成功",
		Data: RulesData{
			Generation: generation,
			Rules:      rules,
		},
	})
}

// GetRule 获取指定规则
func (rs *RuleService) GetRule(c echo.Context) error {
	name := c.Param("name")

	rule, exists := rs.store.GetRule(name)
	if !exists {
		return HandleError(c, NewRuleNotFoundError(name))
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取规则成功",
		Data:    rule,
	})
}

// UpdateRules 使用请求体中的配置整体替换规则
// 配置无法解析时规则会被清空，并返回400
func (rs *RuleService) UpdateRules(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(c, NewInternalServerError(err))
	}

	result, err := rs.store.UpdateRules(c.Request().Context(), string(body))
	if err != nil {
		var updateErr *ruleEngine.UpdateError
		if errors.As(err, &updateErr) && updateErr.Stage == ruleEngine.StageReconcile {
			return HandleError(c, NewReconcileError(err, result))
		}
		if ruleEngine.IsConfigParseError(err) {
			return HandleError(c, NewInvalidPayloadError(err, result))
		}
		return HandleError(c, NewInternalServerError(err))
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "更新规则成功",
		Data:    result,
	})
}

// GetStats 获取规则存储统计
func (rs *RuleService) GetStats(c echo.Context) error {
	stats := rs.store.GetMetrics().GetStats()
	stats["generation"] = rs.store.Generation()
	stats["rule_count"] = len(rs.store.GetRules())

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取统计信息成功",
		Data:    stats,
	})
}
