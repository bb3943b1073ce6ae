package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ledger-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	HttpPort string
	// ShutdownTimeout 优雅退出等待时间，默认 5s
	ShutdownTimeout time.Duration
}

type App struct {
	httpServer      *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// New 监听端口；端口为 "0" 时由系统分配
func New(cfg Config, httpHandler *gin.Engine) (*App, error) {
	lis, err := net.Listen("tcp", ":"+cfg.HttpPort)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &App{
		httpServer:      &http.Server{Handler: httpHandler, ReadHeaderTimeout: 10 * time.Second},
		listener:        lis,
		shutdownTimeout: timeout,
	}, nil
}

// Addr 实际监听地址
func (a *App) Addr() string {
	return a.listener.Addr().String()
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 启动服务并阻塞，直到 ctx 结束或服务出错
func (a *App) RunContext(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.Addr()))
		if err := a.httpServer.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP Server failure", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("Server exited properly")
	return nil
}
