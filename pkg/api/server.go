package api

import (
	"context"
	"fmt"

	"github.com/haolipeng/metadata_rule_matcher/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server HTTP 服务器
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer 创建一个新的 HTTP 服务器
func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// 规则配置整体下发，限制请求体大小
	e.Use(middleware.BodyLimit("8M"))

	// 构建地址
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)

	return &Server{
		echo: e,
		addr: addr,
	}
}

// Start 启动 HTTP 服务器
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop 停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// GetEcho 获取Echo实例
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// RegisterRuleService 注册规则服务
func (s *Server) RegisterRuleService(rs *RuleService) {
	s.echo.GET("/metadataRules", rs.GetRules)       // 获取当前规则
	s.echo.PUT("/metadataRules", rs.UpdateRules)    // 整体替换规则
	s.echo.GET("/metadataRules/stats", rs.GetStats) // 获取规则存储统计
	s.echo.GET("/metadataRules/:name", rs.GetRule)  // 获取指定规则
}
