package pipeline

import (
	"context"
	"sync"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/haolipeng/metadata_rule_matcher/pkg/metrics"
	"github.com/haolipeng/metadata_rule_matcher/pkg/types"
)

// Source 定义规则配置来源接口
type Source interface {
	// Start 启动配置读取，退出时调用wg.Done
	Start(ctx context.Context, wg *sync.WaitGroup) error
	// Output 返回配置输出channel
	Output() <-chan *types.Payload
}

// Processor 定义配置处理器接口
type Processor interface {
	// Process 处理配置，退出时调用wg.Done
	Process(ctx context.Context, in <-chan *types.Payload, wg *sync.WaitGroup) (<-chan *types.Payload, error)
	// Stage 返回处理器所属阶段
	Stage() types.Stage
	// Name 返回处理器的名称
	Name() string
	// CheckReady 检查处理器是否就绪
	CheckReady() error
}

// Sink 定义配置输出接口
type Sink interface {
	// Consume 消费处理后的配置
	Consume(ctx context.Context, in <-chan *types.Payload) error
	// Ready 返回就绪信号channel
	Ready() <-chan struct{}
}

// Pipeline 定义处理流水线接口
type Pipeline interface {
	// AddProcessor 添加处理器
	AddProcessor(processor Processor) error
	// SetSource 设置配置来源
	SetSource(source Source)
	// SetSink 设置配置输出
	SetSink(sink Sink)
	// Start 启动流水线
	Start(ctx context.Context) error
	// Stop 停止流水线
	Stop() error
	// Wait 等待所有阶段退出
	Wait()
	// GetMetrics 获取处理器指标
	GetMetrics() map[string]*metrics.ProcessorMetrics
	// SetConfig 设置流水线配置
	SetConfig(*config.Config) error
	// Status 返回流水线状态
	Status() string
}
