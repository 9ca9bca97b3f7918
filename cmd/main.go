package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	rotates "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/haolipeng/metadata_rule_matcher/pkg/api"
	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/haolipeng/metadata_rule_matcher/pkg/pipeline"
	"github.com/haolipeng/metadata_rule_matcher/pkg/processor"
	"github.com/haolipeng/metadata_rule_matcher/pkg/ruleEngine"
	"github.com/haolipeng/metadata_rule_matcher/pkg/sink"
	"github.com/haolipeng/metadata_rule_matcher/pkg/source"
	"github.com/haolipeng/metadata_rule_matcher/pkg/userdata"
)

func InitLogger(cfg *config.Config) error {
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	logrus.SetFormatter(formatter)

	var level logrus.Level
	var err error
	var logWriter *rotates.RotateLogs

	switch cfg.Log.Level {
	case "DEBUG":
		level = logrus.DebugLevel
	case "WARN":
		level = logrus.WarnLevel
	case "INFO":
		level = logrus.InfoLevel
	case "ERROR":
		level = logrus.ErrorLevel
	case "FATAL":
		level = logrus.FatalLevel
	case "PANIC":
		level = logrus.PanicLevel
	default:
		level = logrus.WarnLevel //默认
	}
	logrus.SetLevel(level)

	// 未配置日志目录时只输出到标准输出
	if cfg.Log.Dir == "" {
		return nil
	}

	//1、判断文件路径和文件是否存在，不存在则创建
	if _, err := os.Stat(cfg.Log.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
			return err
		}
	}
	logFileName := path.Join(cfg.Log.Dir, cfg.Log.Filename)

	//2、日志切割功能，按时间来切割
	options := []rotates.Option{
		rotates.WithMaxAge(time.Duration(cfg.Log.MaxAge) * time.Hour),           //文件最大保存时间
		rotates.WithRotationTime(time.Duration(cfg.Log.RotateTime) * time.Hour), //文件切割间隔
	}
	if runtime.GOOS != "windows" {
		options = append(options, rotates.WithLinkName(logFileName)) //文件软链接
	}
	logWriter, err = rotates.New(logFileName+".%Y%m%d%H%M", options...)
	if err != nil {
		return err
	}

	//3、所有级别写入同一个切割文件
	lfHook := lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: logWriter,
		logrus.InfoLevel:  logWriter,
		logrus.WarnLevel:  logWriter,
		logrus.ErrorLevel: logWriter,
		logrus.FatalLevel: logWriter,
		logrus.PanicLevel: logWriter,
	}, &logrus.TextFormatter{})

	logrus.AddHook(lfHook)
	return nil
}

func main() {
	configFile := "config.yaml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := InitLogger(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	api.SetDebugMode(cfg.Log.Level == "DEBUG")

	logrus.Info("Starting metadata rule matcher...")

	// 创建context用于控制生命周期
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 用户数据存储
	userData, err := userdata.NewStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to create user data store: %v", err)
	}
	if closer, ok := userData.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	store := ruleEngine.NewRuleStore(userData)

	// 创建pipeline
	p := pipeline.NewPipeline()
	if err := p.SetConfig(cfg); err != nil {
		logrus.Fatalf("Failed to set pipeline config: %v", err)
	}

	fileSource, err := source.NewPayloadFileSource(cfg.Rules.PayloadFile, cfg.Rules.Watch, cfg.Rules.BufferSize)
	if err != nil {
		logrus.Fatalf("Failed to create payload file source: %v", err)
	}
	p.SetSource(fileSource)

	ruleSink := sink.NewRuleStoreSink(store)
	p.SetSink(ruleSink)

	// 相同内容且仍在生效的配置不重复下发
	if err := p.AddProcessor(processor.NewPayloadDeduplicator(ruleSink)); err != nil {
		logrus.Fatalf("Add Payload Deduplicator Failed: %v", err)
	}

	// 启动pipeline
	if err := p.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start pipeline: %v", err)
	}
	logrus.Info("Pipeline started successfully")

	// 启动API服务
	var server *api.Server
	if cfg.API.Enable {
		server = api.NewServer(cfg)
		server.RegisterRuleService(api.NewRuleService(store))
		go func() {
			logrus.Infof("API server listening on %s:%s", cfg.API.Host, cfg.API.Port)
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("API server error: %v", err)
			}
		}()
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logrus.Infof("Received signal %v, shutting down...", sig)

	// 优雅退出
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Stop(shutdownCtx); err != nil {
			logrus.Errorf("Error stopping API server: %v", err)
		}
		shutdownCancel()
	}

	cancel()
	if err := p.Stop(); err != nil {
		logrus.Errorf("Error stopping pipeline: %v", err)
	}

	logrus.Info("Shutdown complete")
}
