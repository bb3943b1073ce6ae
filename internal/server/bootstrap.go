package server

import (
	"ledger-core/internal/device"
	"ledger-core/internal/handler"
	"ledger-core/pkg/config"
	"ledger-core/pkg/logger"

	"go.uber.org/zap"
)

// Start 按配置连接设备并运行 HTTP 服务，阻塞到收到退出信号
func Start(cfg config.Config) error {
	client, closer, err := device.NewClient(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("设备通道已就绪",
		zap.String("transport", cfg.Device.Transport),
		zap.Int("max_chunk", cfg.Device.MaxChunk),
		zap.Uint64("chain_id", cfg.Device.ChainID))

	r := NewHTTPRouter(handler.NewDeviceHandler(client, cfg.Device.Timeout))
	app, err := New(Config{HttpPort: cfg.App.HttpPort}, r)
	if err != nil {
		return err
	}
	return app.Run()
}
