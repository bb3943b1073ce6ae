package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestSealOpen(t *testing.T) {
	key, err := Seal(testMnemonic, "secure-password", LightScrypt)
	if err != nil {
		t.Fatalf("加密失败: %v", err)
	}
	assert.Equal(t, "aes-256-gcm", key.Crypto.Cipher)
	assert.Equal(t, 3, key.Version)
	assert.Len(t, key.ID, 36)

	plaintext, err := key.Open("secure-password")
	if err != nil {
		t.Fatalf("解密失败: %v", err)
	}
	assert.Equal(t, testMnemonic, plaintext)

	_, err = key.Open("wrong-password")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emulator.json")

	key, err := Seal(testMnemonic, "123456", LightScrypt)
	require.NoError(t, err)
	require.NoError(t, key.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// 不覆盖已有文件
	assert.Error(t, key.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, key.ID, loaded.ID)

	mnemonic, err := LoadMnemonic(path, "123456")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)
}

func TestOpenCorrupted(t *testing.T) {
	key, err := Seal(testMnemonic, "pw", LightScrypt)
	require.NoError(t, err)

	tampered := *key
	flip := "0"
	if key.Crypto.CipherText[0] == '0' {
		flip = "1"
	}
	tampered.Crypto.CipherText = flip + key.Crypto.CipherText[1:]
	_, err = tampered.Open("pw")
	assert.ErrorIs(t, err, ErrWrongPassword)

	unsupported := *key
	unsupported.Crypto.Cipher = "aes-128-ctr"
	_, err = unsupported.Open("pw")
	assert.ErrorIs(t, err, ErrUnsupported)

	badHex := *key
	badHex.Crypto.KDFParams.Salt = "zz"
	_, err = badHex.Open("pw")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrUnsupported)
}
