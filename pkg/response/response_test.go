package response

import (
	"bytes"
	"strings"
	"testing"

	"ledger-core/pkg/apdu"
	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publicKeyResponse(t *testing.T, withChainCode bool) ([]byte, []byte, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.FromECDSAPub(&key.PublicKey)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()[2:]

	data := append([]byte{65}, pub...)
	data = append(data, 40)
	data = append(data, addr...)
	if withChainCode {
		data = append(data, bytes.Repeat([]byte{0xcc}, 32)...)
	}
	return data, pub, addr
}

func TestParsePublicKey(t *testing.T) {
	data, pub, addr := publicKeyResponse(t, false)

	pk, err := ParsePublicKey(data)
	require.NoError(t, err)
	assert.Equal(t, pub, pk.Key)
	assert.Equal(t, addr, pk.Address.Hex()[2:])
	assert.Nil(t, pk.ChainCode)

	// 只有公钥部分也可以解析
	pk, err = ParsePublicKey(data[:66])
	require.NoError(t, err)
	assert.Equal(t, addr, pk.Address.Hex()[2:])

	// 地址大小写不敏感
	lower := append(append([]byte{}, data[:67]...), strings.ToLower(addr)...)
	_, err = ParsePublicKey(lower)
	assert.NoError(t, err)
}

func TestParsePublicKeyWithChainCode(t *testing.T) {
	data, _, _ := publicKeyResponse(t, true)

	pk, err := ParsePublicKey(data)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xcc}, 32), pk.ChainCode)
}

func TestParsePublicKeyErrors(t *testing.T) {
	data, _, _ := publicKeyResponse(t, false)

	wrongLen := append([]byte{33}, data[1:]...)
	_, err := ParsePublicKey(wrongLen)
	assert.ErrorIs(t, err, errno.ErrUnexpectedKeyLength)
	assert.Equal(t, errno.KindProtocol, errno.KindOf(err))

	_, err = ParsePublicKey(data[:40])
	assert.ErrorIs(t, err, errno.ErrUnexpectedResponseLength)

	_, err = ParsePublicKey(nil)
	assert.ErrorIs(t, err, errno.ErrUnexpectedResponseLength)

	notOnCurve := append([]byte{65, 0x04}, bytes.Repeat([]byte{0x01}, 64)...)
	_, err = ParsePublicKey(notOnCurve)
	assert.ErrorIs(t, err, errno.ErrInvalidPublicKey)

	_, err = ParsePublicKey(append(append([]byte{}, data[:67]...), strings.Repeat("0", 40)...))
	assert.ErrorIs(t, err, errno.ErrAddressMismatch)

	_, err = ParsePublicKey(append(data, 0x01, 0x02))
	assert.ErrorIs(t, err, errno.ErrUnexpectedResponseLength)
}

func TestParseSignature(t *testing.T) {
	data := make([]byte, 65)
	data[0] = 0x10
	data[63] = 0x20
	data[64] = 0x01

	sig, err := ParseSignature(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), sig.R[0])
	assert.Equal(t, byte(0x20), sig.S[31])
	assert.Equal(t, byte(1), sig.V)
	assert.Equal(t, data, sig.Bytes())

	data[64] = 0x1b
	_, err = ParseSignature(data)
	assert.ErrorIs(t, err, errno.ErrIllegalRecoveryTag)

	_, err = ParseSignature(data[:64])
	assert.ErrorIs(t, err, errno.ErrUnexpectedResponseLength)
}

func TestParseLegacySignature(t *testing.T) {
	tests := []struct {
		name    string
		v       byte
		chainID uint64
		wantErr error
		wantRec byte
	}{
		{"v=37", 0x25, 1, nil, 0},
		{"v=38", 0x26, 1, nil, 1},
		{"v=16", 0x10, 1, errno.ErrIllegalRecoveryTag, 0},
		{"v=27 旧式标记", 27, 1, errno.ErrIllegalRecoveryTag, 0},
		{"其它链 v=39", 39, 2, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 65)
			data[0] = tt.v
			data[1] = 0xaa

			sig, err := ParseLegacySignature(data, tt.chainID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte(0xaa), sig.R[0])
			assert.Equal(t, tt.wantRec, sig.RecoveryID(ModeLegacy, tt.chainID))
		})
	}
}

func TestParseAppConfiguration(t *testing.T) {
	cfg, err := ParseAppConfiguration([]byte{0x03, 1, 1, 1})
	require.NoError(t, err)
	assert.True(t, cfg.DataAllowed)
	assert.True(t, cfg.MultiClauseAllowed)
	assert.Equal(t, "1.1.1", cfg.Version())

	cfg, err = ParseAppConfiguration([]byte{0x00, 1, 2, 3})
	require.NoError(t, err)
	assert.False(t, cfg.DataAllowed)
	assert.False(t, cfg.MultiClauseAllowed)

	_, err = ParseAppConfiguration([]byte{0x00, 1, 2})
	assert.ErrorIs(t, err, errno.ErrUnexpectedResponseLength)
}

func TestParseDispatch(t *testing.T) {
	got, err := Parse(apdu.InsGetAppConfiguration, ModeApp, []byte{0x01, 1, 0, 0}, 1)
	require.NoError(t, err)
	assert.IsType(t, &AppConfiguration{}, got)

	sig := make([]byte, 65)
	got, err = Parse(apdu.InsSignPersonalMessage, ModeApp, sig, 1)
	require.NoError(t, err)
	assert.IsType(t, &Signature{}, got)

	// 同样的字节在 legacy 模式下 v=0 非法
	_, err = Parse(apdu.InsSign, ModeLegacy, sig, 1)
	assert.ErrorIs(t, err, errno.ErrIllegalRecoveryTag)

	_, err = Parse(0x77, ModeApp, nil, 1)
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}
