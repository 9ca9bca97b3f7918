package ruleEngine

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// RuleFilter 使用CEL表达式筛选规则
// 可用变量: name(string), keys(list(string)), value(string)
type RuleFilter struct {
	expression string
	program    cel.Program
}

// NewRuleFilter 编译筛选表达式，表达式必须返回布尔值
func NewRuleFilter(expression string) (*RuleFilter, error) {
	if expression == "" {
		return nil, fmt.Errorf("表达式不能为空")
	}

	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("keys", cel.ListType(cel.StringType)),
		cel.Variable("value", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("创建CEL环境失败: %w", err)
	}

	// 编译并检查表达式
	ast, iss := env.Compile(expression)
	if iss.Err() != nil {
		return nil, fmt.Errorf("表达式编译错误: %w", iss.Err())
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("表达式必须返回布尔值，当前返回: %s", ast.OutputType().String())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program failed: %w", err)
	}

	return &RuleFilter{
		expression: expression,
		program:    program,
	}, nil
}

// Match 判断规则是否满足筛选表达式
func (f *RuleFilter) Match(rule *MetadataRule) (bool, error) {
	result, _, err := f.program.Eval(map[string]interface{}{
		"name":  rule.GetName(),
		"keys":  rule.GetKeyRules(),
		"value": rule.GetValRule(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter failed: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter result is not boolean: %v", result.Value())
	}
	return matched, nil
}

// Apply 返回满足表达式的规则，保持原有顺序
func (f *RuleFilter) Apply(rules []*MetadataRule) ([]*MetadataRule, error) {
	filtered := make([]*MetadataRule, 0, len(rules))
	for _, rule := range rules {
		matched, err := f.Match(rule)
		if err != nil {
			return nil, err
		}
		if matched {
			filtered = append(filtered, rule)
		}
	}
	return filtered, nil
}

func (f *RuleFilter) String() string {
	return f.expression
}
