package sink

import (
	"context"
	"sync"

	"github.com/haolipeng/metadata_rule_matcher/pkg/ruleEngine"
	"github.com/haolipeng/metadata_rule_matcher/pkg/types"
	"github.com/sirupsen/logrus"
)

// RuleUpdater 接收规则配置的规则存储
type RuleUpdater interface {
	UpdateRules(ctx context.Context, payload string) (*ruleEngine.UpdateResult, error)
	Generation() uint64
}

// RuleStoreSink 把每次下发的配置应用到规则存储
type RuleStoreSink struct {
	store   RuleUpdater
	ready   chan struct{}
	mu      sync.Mutex
	applied int
	failed  int

	// 最近一次成功应用的配置指纹及其规则代数
	lastChecksum   string
	lastGeneration uint64
}

func NewRuleStoreSink(store RuleUpdater) *RuleStoreSink {
	return &RuleStoreSink{
		store: store,
		ready: make(chan struct{}),
	}
}

func (s *RuleStoreSink) Consume(ctx context.Context, in <-chan *types.Payload) error {
	logrus.Info("Starting rule store sink consumer")
	defer logrus.Info("Rule store sink consumer stopped")

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Rule store sink received context cancellation")
			return nil
		case payload, ok := <-in:
			if !ok {
				logrus.Debug("Rule store sink input channel closed")
				return nil
			}
			s.apply(ctx, payload)
		}
	}
}

func (s *RuleStoreSink) apply(ctx context.Context, payload *types.Payload) {
	if payload.Error != nil {
		logrus.WithFields(logrus.Fields{
			"payload_id": payload.ID,
			"error":      payload.Error.Error(),
		}).Warn("规则配置处理出错，仍然下发")
	}

	result, err := s.store.UpdateRules(ctx, string(payload.Content))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failed++
		s.lastChecksum = ""
		logrus.WithFields(logrus.Fields{
			"payload_id": payload.ID,
			"path":       payload.Path,
			"error":      err.Error(),
		}).Error("应用规则配置失败")
		return
	}

	s.applied++
	s.lastChecksum = payload.Checksum
	s.lastGeneration = result.Generation
	logrus.WithFields(logrus.Fields{
		"payload_id": payload.ID,
		"checksum":   payload.Checksum,
		"generation": result.Generation,
		"installed":  result.Installed,
		"removed":    len(result.Removed),
	}).Info("规则配置已应用")
}

func (s *RuleStoreSink) Ready() <-chan struct{} {
	return s.ready
}

// IsCurrent 判断该指纹的配置是否仍是规则存储当前生效的一代
func (s *RuleStoreSink) IsCurrent(checksum string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checksum == "" || checksum != s.lastChecksum {
		return false
	}
	return s.store.Generation() == s.lastGeneration
}

// Stats 返回成功和失败的下发次数
func (s *RuleStoreSink) Stats() (applied int, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied, s.failed
}
