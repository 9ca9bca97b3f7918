package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/haolipeng/metadata_rule_matcher/pkg/metrics"
	"github.com/haolipeng/metadata_rule_matcher/pkg/types"
	"github.com/sirupsen/logrus"
)

type pipeline struct {
	source     Source
	processors []Processor
	sink       Sink
	running    bool
	mu         sync.Mutex
	status     string
	startTime  time.Time
	cancel     context.CancelFunc
	wg         sync.WaitGroup // 用于跟踪所有goroutine
}

func NewPipeline() Pipeline {
	return &pipeline{
		processors: make([]Processor, 0),
		status:     "initialized",
	}
}

func (p *pipeline) AddProcessor(processor Processor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("cannot add processor while pipeline is running")
	}

	p.processors = append(p.processors, processor)
	// 按Stage排序处理器
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Stage() < p.processors[j].Stage()
	})

	return nil
}

func (p *pipeline) SetSource(source Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

func (p *pipeline) SetSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return types.NewPipelineError("start", fmt.Errorf("pipeline already running"))
	}
	if p.source == nil || p.sink == nil {
		return types.NewPipelineError("start", fmt.Errorf("source and sink are required"))
	}

	// 1. 首先检查所有处理器是否就绪
	for _, processor := range p.processors {
		if err := processor.CheckReady(); err != nil {
			return types.NewPipelineError("start", fmt.Errorf("processor %s not ready: %w", processor.Name(), err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg = sync.WaitGroup{}
	p.startTime = time.Now()
	p.status = "starting"

	logrus.Info("Starting pipeline")

	// 2. 前一个stage的输出直接作为下一个stage的输入
	input := p.source.Output()
	for _, proc := range p.processors {
		logrus.Debugf("Starting processor at stage: %v", proc.Stage())
		p.wg.Add(1)
		out, err := proc.Process(ctx, input, &p.wg)
		if err != nil {
			p.wg.Done()
			cancel()
			return types.NewPipelineError("start", fmt.Errorf("failed to start processor %s: %w", proc.Name(), err))
		}
		input = out
	}

	// 3. 处理器启动后，再启动sink
	p.wg.Add(1)
	go func(in <-chan *types.Payload) {
		defer p.wg.Done()
		if err := p.sink.Consume(ctx, in); err != nil {
			logrus.Errorf("Sink error: %v", err)
		}
	}(input)

	select {
	case <-p.sink.Ready():
		logrus.Debug("Sink is ready")
	case <-time.After(5 * time.Second):
		cancel()
		return types.NewPipelineError("start", fmt.Errorf("timeout waiting for sink to be ready"))
	}

	// 4. 最后启动配置来源，开始数据流转
	p.wg.Add(1)
	if err := p.source.Start(ctx, &p.wg); err != nil {
		p.wg.Done()
		cancel()
		logrus.Errorf("Failed to start source: %v", err)
		return types.NewPipelineError("start", fmt.Errorf("failed to start source: %w", err))
	}

	p.running = true
	p.status = "running"
	logrus.Info("Pipeline is now running")
	return nil
}

func (p *pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.status = "stopping"
	logrus.Info("Pipeline stopping...")
	p.running = false
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("All pipeline stages completed gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Timeout waiting for pipeline stages to complete")
	}

	p.status = "stopped"
	p.startTime = time.Time{}

	logrus.Info("Pipeline stopped")
	return nil
}

// Wait 等待来源关闭后所有阶段退出
func (p *pipeline) Wait() {
	p.wg.Wait()
}

// GetStats 获取流水线统计信息
func (p *pipeline) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"status":     p.status,
		"uptime":     time.Since(p.startTime).String(),
		"processors": len(p.processors),
	}
}

// GetMetrics 收集提供指标的处理器的指标
func (p *pipeline) GetMetrics() map[string]*metrics.ProcessorMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make(map[string]*metrics.ProcessorMetrics)
	for _, proc := range p.processors {
		if m, ok := proc.(interface{ Metrics() *metrics.ProcessorMetrics }); ok {
			result[proc.Name()] = m.Metrics()
		}
	}
	return result
}

// SetConfig 校验配置，运行中不允许修改
func (p *pipeline) SetConfig(cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return types.NewPipelineError("config", fmt.Errorf("cannot set config while pipeline is running"))
	}

	if err := cfg.Validate(); err != nil {
		return types.NewPipelineError("config", err)
	}
	return nil
}

// Status 实现Pipeline接口的Status方法
func (p *pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
