package main

import (
	"log"

	"ledger-core/internal/server"
	"ledger-core/pkg/config"
	"ledger-core/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	if err := logger.Init(config.Global.App.Env, config.Global.App.LogLevel); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	// 2. 连接设备并启动 HTTP 服务 (阻塞)
	if err := server.Start(config.Global); err != nil {
		logger.Fatal("服务启动失败", zap.Error(err))
	}
	logger.Info("系统已退出")
}
