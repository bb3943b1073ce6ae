package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Device   DeviceConfig   `mapstructure:"device"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	LogLevel string `mapstructure:"log_level"` // 为空时按 env 取默认级别
}

type DeviceConfig struct {
	Transport      string        `mapstructure:"transport"` // "emulator" or "speculos"
	Addr           string        `mapstructure:"addr"`      // speculos APDU 端口
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxChunk       int           `mapstructure:"max_chunk"`
	LegacyMaxChunk int           `mapstructure:"legacy_max_chunk"`
	ChainID        uint64        `mapstructure:"chain_id"` // 仅 legacy 签名校验 v 使用
}

type EmulatorConfig struct {
	Keystore           string `mapstructure:"keystore"` // 加密助记词文件，优先于 mnemonic
	Password           string `mapstructure:"password"` // 通常通过环境变量 EMULATOR_PASSWORD 传入
	Mnemonic           string `mapstructure:"mnemonic"` // 明文助记词，仅限开发环境
	DataAllowed        bool   `mapstructure:"data_allowed"`
	MultiClauseAllowed bool   `mapstructure:"multi_clause_allowed"`
	Reject             bool   `mapstructure:"reject"`
	Legacy             bool   `mapstructure:"legacy"` // 按旧版协议返回 v ‖ r ‖ s
}

const (
	TransportEmulator = "emulator"
	TransportSpeculos = "speculos"
)

var Global Config

// Init 加载配置到 Global，配置文件损坏时直接退出
func Init() {
	cfg, err := Load("")
	if err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}
	Global = *cfg
	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load 读取配置；path 为空时在 . 和 ./config 下查找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量设置，如 DEVICE_ADDR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, err
		}
		log.Printf("Warning: Config file not found, using defaults and environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxLegacyChainID 2·id+36 不超过 255 的最大链 ID
const MaxLegacyChainID = (255 - 36) / 2

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportEmulator, TransportSpeculos:
	default:
		return fmt.Errorf("device.transport: unknown transport %q", c.Device.Transport)
	}
	if c.Device.MaxChunk < 1 || c.Device.MaxChunk > 255 {
		return fmt.Errorf("device.max_chunk: %d not in [1, 255]", c.Device.MaxChunk)
	}
	if c.Device.LegacyMaxChunk < 1 || c.Device.LegacyMaxChunk > 255 {
		return fmt.Errorf("device.legacy_max_chunk: %d not in [1, 255]", c.Device.LegacyMaxChunk)
	}
	// legacy 签名的 v = 2·chain_id + 35/36 只有一个字节
	if c.Device.ChainID > MaxLegacyChainID {
		return fmt.Errorf("device.chain_id: %d exceeds %d", c.Device.ChainID, MaxLegacyChainID)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.log_level", "")

	v.SetDefault("device.transport", TransportEmulator)
	v.SetDefault("device.addr", "127.0.0.1:9999")
	v.SetDefault("device.timeout", 2*time.Minute)
	v.SetDefault("device.max_chunk", 255)
	v.SetDefault("device.legacy_max_chunk", 150)
	v.SetDefault("device.chain_id", 1)

	v.SetDefault("emulator.keystore", "emulator.json")
	v.SetDefault("emulator.password", "")
	v.SetDefault("emulator.mnemonic", "")
	v.SetDefault("emulator.data_allowed", false)
	v.SetDefault("emulator.multi_clause_allowed", false)
	v.SetDefault("emulator.reject", false)
	v.SetDefault("emulator.legacy", false)
}
