package device

import (
	"fmt"
	"io"
	"os"

	"ledger-core/pkg/bip32"
	"ledger-core/pkg/config"
	"ledger-core/pkg/emulator"
	"ledger-core/pkg/exchange"
	"ledger-core/pkg/keystore"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logger"
	"ledger-core/pkg/transport"

	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open 按配置创建传输通道，opts 只作用于 emulator
func Open(cfg config.Config, opts ...emulator.Option) (exchange.Transport, io.Closer, error) {
	switch cfg.Device.Transport {
	case config.TransportSpeculos:
		s, err := transport.Dial(cfg.Device.Addr, cfg.Device.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("已连接 speculos", zap.String("addr", cfg.Device.Addr))
		return s, s, nil

	case config.TransportEmulator:
		mnemonic, err := emulatorMnemonic(cfg.Emulator)
		if err != nil {
			return nil, nil, err
		}
		settings := emulator.WithSettings(emulator.Settings{
			DataAllowed:        cfg.Emulator.DataAllowed,
			MultiClauseAllowed: cfg.Emulator.MultiClauseAllowed,
			Reject:             cfg.Emulator.Reject,
			Legacy:             cfg.Emulator.Legacy,
			ChainID:            cfg.Device.ChainID,
		})
		d, err := emulator.New(mnemonic, append([]emulator.Option{settings}, opts...)...)
		if err != nil {
			return nil, nil, err
		}
		return d, nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Device.Transport)
	}
}

// emulatorMnemonic 优先从 keystore 文件加载，其次使用明文配置，都没有时生成临时助记词
func emulatorMnemonic(cfg config.EmulatorConfig) (string, error) {
	if cfg.Keystore != "" {
		if _, err := os.Stat(cfg.Keystore); err == nil {
			logger.Info("发现本地 Keystore 文件，尝试加载...", zap.String("path", cfg.Keystore))
			if cfg.Password == "" {
				return "", fmt.Errorf("keystore %s: 未提供密码 (环境变量 EMULATOR_PASSWORD)", cfg.Keystore)
			}
			mnemonic, err := keystore.LoadMnemonic(cfg.Keystore, cfg.Password)
			if err != nil {
				return "", fmt.Errorf("keystore %s: %w", cfg.Keystore, err)
			}
			return mnemonic, nil
		}
	}
	if cfg.Mnemonic != "" {
		logger.Warn("未找到 Keystore 文件，使用配置中的明文助记词 (仅限开发环境)")
		return cfg.Mnemonic, nil
	}
	logger.Warn("未找到 Keystore 文件且未配置助记词，使用临时助记词 (仅限开发环境)")
	return bip32.GenerateMnemonic(128)
}

// NewClient 打开传输通道并创建客户端
func NewClient(cfg config.Config, opts ...emulator.Option) (*ledger.Client, io.Closer, error) {
	t, closer, err := Open(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	client := ledger.New(t,
		ledger.WithMaxChunk(cfg.Device.MaxChunk),
		ledger.WithLegacyMaxChunk(cfg.Device.LegacyMaxChunk),
		ledger.WithChainID(cfg.Device.ChainID),
	)
	return client, closer, nil
}
