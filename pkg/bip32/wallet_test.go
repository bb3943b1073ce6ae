package bip32

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

// BIP-32 测试向量 1
const vector1Seed = "000102030405060708090a0b0c0d0e0f"

func TestNewMasterKeyFromSeed(t *testing.T) {
	seed, _ := hex.DecodeString(vector1Seed)

	wallet, err := NewMasterKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("生成主密钥失败: %v", err)
	}

	assert.Equal(t,
		"xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi",
		wallet.MasterKey().String())
	assert.Len(t, wallet.MasterKey().ChainCode(), 32)
}

func TestNewMasterKeyFromSeedInvalid(t *testing.T) {
	_, err := NewMasterKeyFromSeed([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDerivePath(t *testing.T) {
	seed, _ := hex.DecodeString(vector1Seed)
	wallet, err := NewMasterKeyFromSeed(seed)
	require.NoError(t, err)

	child, err := wallet.DerivePath("m/0'")
	if err != nil {
		t.Fatalf("派生路径 m/0' 失败: %v", err)
	}
	assert.Equal(t,
		"xprv9uHRZZhk6KAJC1avXpDAp4MDc3sQKNxDiPvvkX8Br5ngLNv1TxvUxt4cV1rGL5hj6KCesnDYUhd7oWgT11eZG7XnxHrnYeSvkzY7d2bhkJ7",
		child.String())

	// 字符串路径与已解析路径派生结果一致
	p, err := ParsePath(DefaultPath)
	require.NoError(t, err)
	byString, err := wallet.DerivePath(DefaultPath)
	require.NoError(t, err)
	byPath, err := wallet.Derive(p)
	require.NoError(t, err)
	assert.Equal(t, byString.String(), byPath.String())

	pubKey, err := byPath.Neuter()
	if err != nil {
		t.Fatalf("转换为扩展公钥失败: %v", err)
	}
	if pubKey.IsPrivate() {
		t.Errorf("Neuter() 应该返回公钥，但 IsPrivate() 返回 true")
	}
	t.Logf("VeChain xpub: %s", pubKey.String())

	_, err = wallet.DerivePath("m/x")
	assert.Error(t, err)
}

func TestDeriveFromMnemonic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	wallet, err := NewWalletFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	// 与直接使用种子派生的结果一致
	byseed, err := NewMasterKeyFromSeed(bip39.NewSeed(mnemonic, ""))
	require.NoError(t, err)
	assert.Equal(t, byseed.MasterKey().String(), wallet.MasterKey().String())

	key, err := wallet.DerivePath(DefaultPath)
	require.NoError(t, err)

	priv, err := key.ECPrivKey()
	require.NoError(t, err)
	pub, err := key.ECPubKey()
	require.NoError(t, err)
	assert.Equal(t, priv.PubKey().SerializeCompressed(), pub.SerializeCompressed())
}

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic(128)
	if err != nil {
		t.Fatalf("生成 12 词助记词失败: %v", err)
	}
	if _, err := NewWalletFromMnemonic(mnemonic, ""); err != nil {
		t.Errorf("生成的 12 词助记词无效: %v", err)
	}

	_, err = NewWalletFromMnemonic("hello world invalid mnemonic phrase designed to fail validation check", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}
