package ruleEngine

import "encoding/json"

// 下发配置中的字段名
const (
	FieldK          = "k" // 逗号拼接的key规则
	FieldV          = "v" // 值规则
	FieldKDelimiter = ","
)

// MetadataRule 表示一条元数据匹配规则，构造后不可修改
type MetadataRule struct {
	name     string   // 规则名称，同时作为用户数据的key
	keyRules []string // 可选的key规则，任意一个满足即可
	valRule  string   // 值规则
}

// NewMetadataRule 创建一条规则，keyRules会被复制
func NewMetadataRule(name string, keyRules []string, valRule string) *MetadataRule {
	return &MetadataRule{
		name:     name,
		keyRules: append([]string(nil), keyRules...),
		valRule:  valRule,
	}
}

// GetName 获取规则名称
func (r *MetadataRule) GetName() string {
	return r.name
}

// GetKeyRules 获取key规则的副本
func (r *MetadataRule) GetKeyRules() []string {
	return append([]string(nil), r.keyRules...)
}

// GetValRule 获取值规则
func (r *MetadataRule) GetValRule() string {
	return r.valRule
}

type metadataRuleJSON struct {
	Name     string   `json:"name"`
	KeyRules []string `json:"key_rules"`
	ValRule  string   `json:"val_rule"`
}

// MarshalJSON 供API输出规则
func (r *MetadataRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataRuleJSON{
		Name:     r.name,
		KeyRules: r.keyRules,
		ValRule:  r.valRule,
	})
}

// UpdateResult 表示一次规则更新的结果
type UpdateResult struct {
	Generation uint64   `json:"generation"` // 更新后的规则代数
	Installed  int      `json:"installed"`  // 安装的规则数量
	Skipped    int      `json:"skipped"`    // 被跳过的格式错误条目数量
	Removed    []string `json:"removed"`    // 请求删除的失效用户数据key
}
