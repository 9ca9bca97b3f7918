package metrics

import (
	"sync/atomic"
	"time"
)

type RuleStoreMetrics struct {
	Updates           uint64
	ParseFailures     uint64
	ReconcileFailures uint64
	SkippedEntries    uint64 // 格式错误被跳过的规则条目
	RemovedKeys       uint64 // 请求删除的失效用户数据key
	UpdateTime        uint64 // 纳秒
}

func (m *RuleStoreMetrics) IncrementUpdates() {
	atomic.AddUint64(&m.Updates, 1)
}

func (m *RuleStoreMetrics) IncrementParseFailures() {
	atomic.AddUint64(&m.ParseFailures, 1)
}

func (m *RuleStoreMetrics) IncrementReconcileFailures() {
	atomic.AddUint64(&m.ReconcileFailures, 1)
}

func (m *RuleStoreMetrics) AddSkippedEntries(n int) {
	atomic.AddUint64(&m.SkippedEntries, uint64(n))
}

func (m *RuleStoreMetrics) AddRemovedKeys(n int) {
	atomic.AddUint64(&m.RemovedKeys, uint64(n))
}

func (m *RuleStoreMetrics) AddUpdateTime(duration time.Duration) {
	atomic.AddUint64(&m.UpdateTime, uint64(duration.Nanoseconds()))
}

// GetStats 获取规则存储的统计信息
func (m *RuleStoreMetrics) GetStats() map[string]interface{} {
	updates := atomic.LoadUint64(&m.Updates)
	var avgUpdateTime float64
	if updates > 0 {
		avgUpdateTime = float64(atomic.LoadUint64(&m.UpdateTime)) / float64(updates)
	}

	return map[string]interface{}{
		"updates":            updates,
		"parse_failures":     atomic.LoadUint64(&m.ParseFailures),
		"reconcile_failures": atomic.LoadUint64(&m.ReconcileFailures),
		"skipped_entries":    atomic.LoadUint64(&m.SkippedEntries),
		"removed_keys":       atomic.LoadUint64(&m.RemovedKeys),
		"avg_update_time":    avgUpdateTime, // 纳秒
	}
}

type SourceMetrics struct {
	PayloadsRead uint64
	BytesRead    uint64
	ErrorCount   uint64
}

func (m *SourceMetrics) IncrementPayloadsRead() {
	atomic.AddUint64(&m.PayloadsRead, 1)
}

func (m *SourceMetrics) AddBytesRead(bytes uint64) {
	atomic.AddUint64(&m.BytesRead, bytes)
}

func (m *SourceMetrics) IncrementErrorCount() {
	atomic.AddUint64(&m.ErrorCount, 1)
}

// ProcessorMetrics 流水线中每个处理器的指标
type ProcessorMetrics struct {
	ProcessedPayloads uint64
	DroppedPayloads   uint64
}

func (m *ProcessorMetrics) IncrementProcessed() {
	atomic.AddUint64(&m.ProcessedPayloads, 1)
}

func (m *ProcessorMetrics) IncrementDropped() {
	atomic.AddUint64(&m.DroppedPayloads, 1)
}

func (m *ProcessorMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"processed_payloads": atomic.LoadUint64(&m.ProcessedPayloads),
		"dropped_payloads":   atomic.LoadUint64(&m.DroppedPayloads),
	}
}
