package server

import (
	"ledger-core/internal/handler"

	"ledger-core/pkg/monitor"
	"ledger-core/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
// device 为 nil 时只注册不需要设备的接口
func NewHTTPRouter(device *handler.DeviceHandler) *gin.Engine {
	monitor.Init()
	validator.Init()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/path/encode", handler.Codec.EncodePath)
		api.POST("/tx/encode", handler.Codec.EncodeTx)
		api.POST("/tx/decode", handler.Codec.DecodeTx)
	}

	if device != nil {
		dev := api.Group("/device")
		dev.GET("/configuration", device.Configuration)
		dev.POST("/public-key", device.PublicKey)
		dev.POST("/sign-tx", device.SignTx)
		dev.POST("/sign-message", device.SignMessage)
		dev.POST("/sign-certificate", device.SignCertificate)
	}

	return r
}
