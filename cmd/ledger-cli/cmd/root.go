package cmd

import (
	"fmt"
	"os"

	"ledger-core/pkg/config"
	"ledger-core/pkg/logger"

	"github.com/spf13/cobra"
)

// globalFlags 所有子命令共享的标志
type globalFlags struct {
	configFile string
	transport  string
	addr       string
	yes        bool
}

// NewRootCmd 构建命令树
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ledger-cli",
		Short: "VeChain 硬件签名设备命令行工具",
		Long: `与 VeChain Ledger 应用交互的命令行工具。
支持派生路径编码、交易编解码，以及通过 speculos 或内置模拟设备读取公钥和签名。`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "配置文件路径 (默认查找 ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.transport, "transport", "", "设备通道: emulator | speculos")
	rootCmd.PersistentFlags().StringVar(&flags.addr, "addr", "", "speculos APDU 地址，如 127.0.0.1:9999")

	rootCmd.AddCommand(
		newPathCmd(),
		newTxCmd(),
		newDeviceCmd(flags),
		newServeCmd(flags),
		newKeystoreCmd(),
	)
	return rootCmd
}

// load 读取配置并应用命令行覆盖
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.transport != "" {
		cfg.Device.Transport = f.transport
	}
	if f.addr != "" {
		cfg.Device.Addr = f.addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute 将所有子命令添加到根命令并执行
func Execute() {
	defer logger.Sync()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
