package device

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"ledger-core/pkg/bip32"
	"ledger-core/pkg/config"
	"ledger-core/pkg/keystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Device.Transport = config.TransportEmulator
	cfg.Device.MaxChunk = 255
	cfg.Device.LegacyMaxChunk = 150
	cfg.Device.ChainID = 1
	cfg.Device.Timeout = time.Second
	return cfg
}

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewClientEmulator(t *testing.T) {
	cfg := baseConfig()
	cfg.Emulator.Mnemonic = testMnemonic
	cfg.Emulator.MultiClauseAllowed = true

	client, closer, err := NewClient(cfg)
	require.NoError(t, err)
	defer closer.Close()

	appCfg, err := client.GetAppConfiguration(context.Background())
	require.NoError(t, err)
	assert.True(t, appCfg.MultiClauseAllowed)
	assert.False(t, appCfg.DataAllowed)

	pk, err := client.GetPublicKey(context.Background(), bip32.DefaultPath, false, false)
	require.NoError(t, err)
	t.Logf("emulator address: %s", pk.Address.Hex())
}

func TestOpenGeneratedMnemonic(t *testing.T) {
	tr, closer, err := Open(baseConfig())
	require.NoError(t, err)
	assert.NotNil(t, tr)
	assert.NoError(t, closer.Close())
}

func TestOpenErrors(t *testing.T) {
	cfg := baseConfig()
	cfg.Emulator.Mnemonic = "not a valid mnemonic"
	_, _, err := Open(cfg)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Device.Transport = "usb"
	_, _, err = Open(cfg)
	assert.Error(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	cfg = baseConfig()
	cfg.Device.Transport = config.TransportSpeculos
	cfg.Device.Addr = addr
	_, _, err = Open(cfg)
	assert.Error(t, err)
}

func TestEmulatorMnemonicFromKeystore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emulator.json")
	key, err := keystore.Seal(testMnemonic, "secret", keystore.LightScrypt)
	require.NoError(t, err)
	require.NoError(t, key.Save(path))

	mnemonic, err := emulatorMnemonic(config.EmulatorConfig{Keystore: path, Password: "secret", Mnemonic: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)

	_, err = emulatorMnemonic(config.EmulatorConfig{Keystore: path})
	assert.Error(t, err, "缺少密码")

	_, err = emulatorMnemonic(config.EmulatorConfig{Keystore: path, Password: "wrong"})
	assert.ErrorIs(t, err, keystore.ErrWrongPassword)

	// keystore 文件不存在时回退到明文助记词
	mnemonic, err = emulatorMnemonic(config.EmulatorConfig{Keystore: filepath.Join(t.TempDir(), "missing.json"), Mnemonic: testMnemonic})
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)
}
