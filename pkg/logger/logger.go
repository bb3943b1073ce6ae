package logger

import (
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log *zap.Logger
)

func init() {
	// 默认 Nop Logger，库代码和测试无需 Init
	Log = zap.NewNop()
}

// Init 按运行环境初始化全局日志
// production: JSON，ISO8601 时间，关闭采样以保留每一帧的收发记录
// 其他环境: 彩色控制台输出，默认 debug 级别
// level 为空时使用环境默认级别
func Init(env, level string) error {
	config, err := newConfig(env, level)
	if err != nil {
		return err
	}

	l, err := config.Build(zap.AddCallerSkip(1)) // 包级函数多一层调用栈
	if err != nil {
		return err
	}
	Replace(l.With(zap.String("service", "ledger-core")))
	return nil
}

func newConfig(env, level string) (zap.Config, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Sampling = nil
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return config, fmt.Errorf("log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config, nil
}

// Replace 替换全局日志，l 需要带 AddCallerSkip(1)
func Replace(l *zap.Logger) {
	Log = l
	zap.ReplaceGlobals(l)
}

// Named 返回组件日志，不带 caller skip，直接在组件内调用
func Named(name string) *zap.Logger {
	return Log.WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// Hex 以十六进制记录 APDU 等原始字节
func Hex(key string, b []byte) zap.Field {
	return zap.String(key, hex.EncodeToString(b))
}

// Sync flushes any buffered log entries
func Sync() {
	_ = Log.Sync()
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}
