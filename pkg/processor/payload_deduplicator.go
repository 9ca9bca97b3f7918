package processor

import (
	"bytes"
	"context"
	"sync"

	"github.com/haolipeng/metadata_rule_matcher/pkg/digest"
	"github.com/haolipeng/metadata_rule_matcher/pkg/metrics"
	"github.com/haolipeng/metadata_rule_matcher/pkg/types"
	"github.com/sirupsen/logrus"
)

// AppliedState 报告某个配置指纹是否仍是规则存储当前生效的内容
type AppliedState interface {
	IsCurrent(checksum string) bool
}

// PayloadDeduplicator 丢弃与上一次下发内容相同的配置
// 文件监听时一次保存可能触发多个事件，相同内容不需要重复更新规则
// state不为nil时，只有该内容仍在规则存储中生效才丢弃；
// 规则被其他途径替换或上次应用失败后，相同内容会重新下发
type PayloadDeduplicator struct {
	lastChecksum string
	state        AppliedState
	metrics      *metrics.ProcessorMetrics
}

func NewPayloadDeduplicator(state AppliedState) *PayloadDeduplicator {
	return &PayloadDeduplicator{
		state:   state,
		metrics: &metrics.ProcessorMetrics{},
	}
}

func (d *PayloadDeduplicator) Process(ctx context.Context, in <-chan *types.Payload, wg *sync.WaitGroup) (<-chan *types.Payload, error) {
	out := make(chan *types.Payload)

	go func() {
		defer wg.Done()
		defer close(out)

		for {
			var payload *types.Payload
			select {
			case <-ctx.Done():
				return
			case p, ok := <-in:
				if !ok {
					return
				}
				payload = p
			}
			d.metrics.IncrementProcessed()

			checksum, err := digest.ComputeReaderMD5(bytes.NewReader(payload.Content))
			if err != nil {
				// 无法计算指纹时照常下发
				payload.Error = err
			} else if d.isDuplicate(checksum) {
				d.metrics.IncrementDropped()
				logrus.WithFields(logrus.Fields{
					"payload_id": payload.ID,
					"checksum":   checksum,
				}).Debug("规则配置未变化，跳过")
				continue
			} else {
				d.lastChecksum = checksum
				payload.Checksum = checksum
			}

			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (d *PayloadDeduplicator) isDuplicate(checksum string) bool {
	if checksum != d.lastChecksum {
		return false
	}
	return d.state == nil || d.state.IsCurrent(checksum)
}

func (d *PayloadDeduplicator) Stage() types.Stage {
	return types.StagePayloadDedup
}

func (d *PayloadDeduplicator) Name() string {
	return "PayloadDeduplicator"
}

func (d *PayloadDeduplicator) CheckReady() error {
	if d.metrics == nil {
		return types.ErrProcessorNotReady
	}
	return nil
}

func (d *PayloadDeduplicator) Metrics() *metrics.ProcessorMetrics {
	return d.metrics
}
