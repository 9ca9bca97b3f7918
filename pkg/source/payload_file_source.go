package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/haolipeng/metadata_rule_matcher/pkg/metrics"
	"github.com/haolipeng/metadata_rule_matcher/pkg/ruleEngine"
	"github.com/haolipeng/metadata_rule_matcher/pkg/types"
	"github.com/sirupsen/logrus"
)

// PayloadFileSource 从本地文件读取规则配置，文件变化时重新下发
type PayloadFileSource struct {
	path    string
	watcher *fsnotify.Watcher
	output  chan *types.Payload
	done    chan struct{}
	stats   *metrics.SourceMetrics
	count   int64
}

func NewPayloadFileSource(path string, watch bool, bufferSize int) (*PayloadFileSource, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payload file %s: %w", path, err)
	}

	s := &PayloadFileSource{
		path:   absPath,
		output: make(chan *types.Payload, bufferSize),
		done:   make(chan struct{}),
		stats:  &metrics.SourceMetrics{},
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create fsnotify watcher: %w", err)
		}
		// 监听所在目录，编辑器保存时可能先删除再创建文件
		if err := watcher.Add(filepath.Dir(absPath)); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("add path to watcher: %w", err)
		}
		s.watcher = watcher
	}

	return s, nil
}

// Start 先下发一次当前文件内容，开启监听时继续等待文件变化
// 调用者需要事先执行wg.Add(1)
func (s *PayloadFileSource) Start(ctx context.Context, wg *sync.WaitGroup) error {
	logrus.Infof("Started reading rule payloads from file: %s", s.path)

	go func() {
		defer wg.Done()
		defer close(s.output)
		defer close(s.done)
		if s.watcher != nil {
			defer s.watcher.Close()
		}

		s.emit(ctx)
		if s.watcher == nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				logrus.Info("Stopping payload watching due to context cancellation")
				return
			case evt, ok := <-s.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != s.path {
					continue
				}
				// 只关心内容变化，忽略Chmod等事件
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
					continue
				}
				logrus.Debugf("Payload file changed: %s", evt.String())
				s.emit(ctx)
			case err, ok := <-s.watcher.Errors:
				if !ok {
					return
				}
				s.stats.IncrementErrorCount()
				logrus.Warnf("Payload watcher error: %v", err)
			}
		}
	}()

	return nil
}

// emit 读取文件并发送到输出通道，读取失败只记录日志
func (s *PayloadFileSource) emit(ctx context.Context) {
	payload, err := ruleEngine.ReadPayloadFile(s.path)
	if err != nil {
		s.stats.IncrementErrorCount()
		logrus.WithFields(logrus.Fields{
			"path":  s.path,
			"error": err.Error(),
		}).Warn("读取规则配置文件失败")
		return
	}

	id := atomic.AddInt64(&s.count, 1)
	select {
	case <-ctx.Done():
		return
	case s.output <- &types.Payload{
		ID:        fmt.Sprintf("payload-%d", id),
		Path:      s.path,
		Content:   []byte(payload),
		Timestamp: time.Now().UnixNano(),
	}:
	}

	s.stats.IncrementPayloadsRead()
	s.stats.AddBytesRead(uint64(len(payload)))
}

func (s *PayloadFileSource) Output() <-chan *types.Payload {
	return s.output
}

func (s *PayloadFileSource) GetStats() *metrics.SourceMetrics {
	return s.stats
}

func (s *PayloadFileSource) WaitForCompletion() <-chan struct{} {
	return s.done
}
