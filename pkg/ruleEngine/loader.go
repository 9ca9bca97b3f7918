package ruleEngine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// RuleLoader 负责把下发的配置解析为规则列表
type RuleLoader struct {
	rules   []*MetadataRule // 按配置中出现的顺序保存
	skipped int             // 格式错误被跳过的条目数
}

// NewRuleLoader 创建一个新的规则加载器
func NewRuleLoader() *RuleLoader {
	return &RuleLoader{
		rules: make([]*MetadataRule, 0),
	}
}

// LoadRules 解析配置内容
// 顶层结构错误时返回ErrConfigParse，单个条目错误只计数不返回错误
func (rl *RuleLoader) LoadRules(payload string) error {
	names, entries, err := decodeOrderedObject(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	for _, name := range names {
		rule, ok := parseRuleEntry(name, entries[name])
		if !ok {
			rl.skipped++
			continue
		}
		rl.rules = append(rl.rules, rule)
	}
	return nil
}

// GetAllRules 获取解析出的所有规则
func (rl *RuleLoader) GetAllRules() []*MetadataRule {
	return rl.rules
}

// Skipped 返回被跳过的条目数量
func (rl *RuleLoader) Skipped() int {
	return rl.skipped
}

// ReadPayloadFile 从文件读取配置内容，yaml格式会被转换为等价的json
func ReadPayloadFile(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("读取规则文件失败: %w", err)
	}

	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		payload, err := yamlToJSONPayload(data)
		if err != nil {
			return "", fmt.Errorf("解析YAML失败: %w", err)
		}
		return payload, nil
	default:
		return string(data), nil
	}
}

// decodeOrderedObject 解析顶层json对象并保留key的顺序
// 重复的key保留第一次出现的位置，取最后一次的值
func decodeOrderedObject(payload string) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(payload))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.New("top level value is not an object")
	}

	names := make([]string, 0)
	entries := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, seen := entries[name]; !seen {
			names = append(names, name)
		}
		entries[name] = raw
	}

	// 结束符 '}'
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errors.New("unexpected data after top level object")
	}

	return names, entries, nil
}

// parseRuleEntry 解析单个规则条目，格式不正确时返回false
func parseRuleEntry(name string, raw json.RawMessage) (*MetadataRule, bool) {
	if name == "" {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}

	k := optString(fields, FieldK)
	if k == "" {
		return nil, false
	}
	v := optString(fields, FieldV)

	// 不去除空白也不去重，"a," 得到 ["a", ""]
	return NewMetadataRule(name, strings.Split(k, FieldKDelimiter), v), true
}

// optString 字段缺失或为null时返回空串，非字符串取其json文本
func optString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}

// yamlToJSONPayload 把yaml映射按原顺序转换为json文本，锚点和合并键在转换时展开
// 空文档视为没有规则
func yamlToJSONPayload(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "{}", nil
	}
	out, err := yaml.YAMLToJSON(data)
	if err != nil {
		return "", err
	}
	payload := strings.TrimSpace(string(out))
	if payload == "" || payload == "null" {
		return "{}", nil
	}
	return payload, nil
}
