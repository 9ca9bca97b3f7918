package ruleEngine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haolipeng/metadata_rule_matcher/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// UserDataStore 外部用户数据存储，key为规则名称
type UserDataStore interface {
	GetKeys(ctx context.Context) ([]string, error)
	RemoveByKeys(ctx context.Context, keys []string) error
}

// RuleStore 保存当前一代的元数据规则
//
// 更新时整体替换规则列表，之后删除外部存储中已没有对应规则的用户数据。
// updateMu 串行化整个更新过程，mu 只保护规则列表本身，
// 因此读取者不会等待外部存储的调用。
type RuleStore struct {
	updateMu   sync.Mutex
	mu         sync.RWMutex
	rules      []*MetadataRule
	index      map[string]*MetadataRule
	generation uint64
	userData   UserDataStore
	metrics    *metrics.RuleStoreMetrics
}

// NewRuleStore 创建一个空的规则存储，userData为nil时不做清理
func NewRuleStore(userData UserDataStore) *RuleStore {
	return &RuleStore{
		rules:    make([]*MetadataRule, 0),
		index:    make(map[string]*MetadataRule),
		userData: userData,
		metrics:  &metrics.RuleStoreMetrics{},
	}
}

// GetRules 返回当前规则列表的副本
func (s *RuleStore) GetRules() []*MetadataRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*MetadataRule(nil), s.rules...)
}

// GetRule 根据规则名称获取规则
func (s *RuleStore) GetRule(name string) (*MetadataRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, exists := s.index[name]
	return rule, exists
}

// Generation 返回当前规则代数，每次更新加一
func (s *RuleStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// GetMetrics 获取规则存储的指标
func (s *RuleStore) GetMetrics() *metrics.RuleStoreMetrics {
	return s.metrics
}

// UpdateRules 用下发的配置整体替换规则，并清理失效的用户数据
// 处理流程：
// 1. 解析配置，格式错误的条目直接跳过
// 2. 安装新的规则列表；配置整体无法解析时安装空列表，不回滚到上一代
// 3. 在规则锁之外与外部用户数据对账，删除没有对应规则的key
func (s *RuleStore) UpdateRules(ctx context.Context, payload string) (*UpdateResult, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.AddUpdateTime(time.Since(start))
	}()
	s.metrics.IncrementUpdates()

	loader := NewRuleLoader()
	parseErr := loader.LoadRules(payload)

	// 解析失败时规则被清空
	rules := loader.GetAllRules()
	if parseErr != nil {
		rules = nil
	}
	generation := s.install(rules)

	if parseErr != nil {
		s.metrics.IncrementParseFailures()
		logrus.WithFields(logrus.Fields{
			"generation": generation,
			"error":      parseErr.Error(),
			"operation":  "update_rules",
		}).Warn("规则配置解析失败，规则已清空")
		return &UpdateResult{Generation: generation}, &UpdateError{Stage: StageParse, Err: parseErr}
	}

	result := &UpdateResult{
		Generation: generation,
		Installed:  len(rules),
		Skipped:    loader.Skipped(),
	}
	s.metrics.AddSkippedEntries(result.Skipped)

	removed, err := s.removeUnusedRules(ctx, rules)
	if err != nil {
		s.metrics.IncrementReconcileFailures()
		logrus.WithFields(logrus.Fields{
			"generation": generation,
			"error":      err.Error(),
			"operation":  "reconcile",
		}).Error("清理失效用户数据失败")
		return result, &UpdateError{Stage: StageReconcile, Err: err}
	}
	result.Removed = removed
	s.metrics.AddRemovedKeys(len(removed))

	logrus.WithFields(logrus.Fields{
		"generation": generation,
		"installed":  result.Installed,
		"skipped":    result.Skipped,
		"removed":    len(removed),
		"operation":  "update_rules",
	}).Info("规则更新成功")

	return result, nil
}

// install 原子地替换规则列表，返回新的代数
func (s *RuleStore) install(rules []*MetadataRule) uint64 {
	index := make(map[string]*MetadataRule, len(rules))
	for _, rule := range rules {
		index[rule.GetName()] = rule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(make([]*MetadataRule, 0, len(rules)), rules...)
	s.index = index
	s.generation++
	return s.generation
}

// removeUnusedRules 删除外部存储中没有对应规则的用户数据
func (s *RuleStore) removeUnusedRules(ctx context.Context, rules []*MetadataRule) ([]string, error) {
	if s.userData == nil {
		return nil, nil
	}

	keys, err := s.userData.GetKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	ruleNames := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		ruleNames[rule.GetName()] = struct{}{}
	}

	rulesToRemove := make([]string, 0)
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := ruleNames[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rulesToRemove = append(rulesToRemove, key)
	}
	if len(rulesToRemove) == 0 {
		return nil, nil
	}
	sort.Strings(rulesToRemove)

	logrus.WithFields(logrus.Fields{
		"keys":      rulesToRemove,
		"operation": "remove_user_data",
	}).Debug("删除失效的用户数据")

	if err := s.userData.RemoveByKeys(ctx, rulesToRemove); err != nil {
		return nil, err
	}
	return rulesToRemove, nil
}
