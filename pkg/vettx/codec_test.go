package vettx

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 单子句转账: chainTag 0xAA, 5 VET, gas 21000, nonce 0x1234, 签名字段为空
const singleClauseTx = "f83a81aa88aae47d18daa1301d8202d0e0df94d6fdbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000080818082520880821234c080"

var multiClauseTxs = []string{
	// 两个子句且带数据
	"f86781aa88abe47d18daa1301d8202d0f84ce594d6fdbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000086307861613535e594deadbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000086307861613535818082520880821234c080",
	// 单子句带数据
	"f84081aa88abe47d18daa1301d8202d0e6e594d6fdbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000086307861613535818082520880821234c080",
	// 两个子句无数据
	"f85b81aa88abe47d18daa1301d8202d0f840df94d6fdbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000080df94deadbeb6d0fbc690dabd352cf93b2f8d782a46b5884563918244f4000080818082520880821234c080",
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func sampleTx() *Transaction {
	to := common.HexToAddress("0xd6FdBEB6d0FBC690DaBD352cF93b2f8D782A46B5")
	value, _ := new(big.Int).SetString("5000000000000000000", 10)
	return &Transaction{
		ChainTag:     0xaa,
		BlockRef:     [8]byte{0xaa, 0xe4, 0x7d, 0x18, 0xda, 0xa1, 0x30, 0x1d},
		Expiration:   720,
		Clauses:      []Clause{{To: &to, Value: value}},
		GasPriceCoef: 128,
		Gas:          21000,
		Nonce:        0x1234,
	}
}

func TestDecodeReferenceVector(t *testing.T) {
	raw := mustHex(t, singleClauseTx)

	tx, variant, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Signed, variant)
	assert.Empty(t, tx.Signature)

	want := sampleTx()
	assert.Equal(t, want.ChainTag, tx.ChainTag)
	assert.Equal(t, want.BlockRef, tx.BlockRef)
	assert.Equal(t, want.Expiration, tx.Expiration)
	assert.Equal(t, want.GasPriceCoef, tx.GasPriceCoef)
	assert.Equal(t, want.Gas, tx.Gas)
	assert.Equal(t, want.Nonce, tx.Nonce)
	assert.Empty(t, tx.DependsOn)
	require.Len(t, tx.Clauses, 1)
	assert.Equal(t, *want.Clauses[0].To, *tx.Clauses[0].To)
	assert.Zero(t, want.Clauses[0].Value.Cmp(tx.Clauses[0].Value))
	assert.Equal(t, "5", FormatVET(tx.Clauses[0].Value))
}

func TestEncodeReferenceVector(t *testing.T) {
	tx := sampleTx()

	signed, err := Encode(tx, Signed)
	require.NoError(t, err)
	assert.Equal(t, singleClauseTx, hex.EncodeToString(signed))

	// 未签名形态少一个顶层元素，而不是一个空元素
	unsigned, err := Encode(tx, Unsigned)
	require.NoError(t, err)
	assert.Equal(t, "f839"+singleClauseTx[4:len(singleClauseTx)-2], hex.EncodeToString(unsigned))

	_, variant, err := Decode(unsigned)
	require.NoError(t, err)
	assert.Equal(t, Unsigned, variant)
}

func TestRoundTripCanonical(t *testing.T) {
	for i, vector := range append([]string{singleClauseTx}, multiClauseTxs...) {
		raw := mustHex(t, vector)
		tx, variant, err := Decode(raw)
		if err != nil {
			t.Fatalf("向量 %d 解码失败: %v", i, err)
		}
		out, err := Encode(tx, variant)
		require.NoError(t, err)
		assert.Equal(t, vector, hex.EncodeToString(out), "向量 %d", i)
	}
}

func TestMultiClauseData(t *testing.T) {
	tx, _, err := Decode(mustHex(t, multiClauseTxs[0]))
	require.NoError(t, err)
	require.Len(t, tx.Clauses, 2)
	assert.Equal(t, []byte("0xaa55"), tx.Clauses[0].Data)
	assert.Equal(t, "0xDEADBEB6d0FBC690DaBD352cF93b2f8D782A46B5", tx.Clauses[1].To.Hex())
	assert.True(t, tx.HasData())
	assert.Equal(t, "10", FormatVET(tx.TotalValue()))
}

func TestIntegerEncoding(t *testing.T) {
	tests := []struct {
		name   string
		value  *big.Int
		clause string
	}{
		{"零编码为空串", big.NewInt(0), "c3808080"},
		{"nil 按零处理", nil, "c3808080"},
		{"单字节", big.NewInt(5), "c3800580"},
		{"300", big.NewInt(300), "c58082012c80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 合约部署子句: 空地址 + 金额 + 空数据
			tx := &Transaction{Clauses: []Clause{{Value: tt.value}}}
			out, err := Encode(tx, Unsigned)
			require.NoError(t, err)
			assert.Contains(t, hex.EncodeToString(out), tt.clause)

			decoded, _, err := Decode(out)
			require.NoError(t, err)
			assert.Nil(t, decoded.Clauses[0].To)
		})
	}
}

func TestEncodeContractCreation(t *testing.T) {
	tx := &Transaction{Clauses: []Clause{{Value: big.NewInt(300), Data: []byte{0x60, 0x80}}}}
	out, err := Encode(tx, Unsigned)
	require.NoError(t, err)
	// clause = [0x80, 0x82012c, 0x826080], 列表头 0xc7
	assert.True(t, strings.Contains(hex.EncodeToString(out), "c78082012c826080"))
}

func TestEncodeFieldOverflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)

	tests := []struct {
		name    string
		tx      *Transaction
		variant Variant
	}{
		{"金额超过 256 位", &Transaction{Clauses: []Clause{{Value: tooBig}}}, Unsigned},
		{"负金额", &Transaction{Clauses: []Clause{{Value: big.NewInt(-1)}}}, Unsigned},
		{"dependsOn 长度错误", &Transaction{DependsOn: []byte{1, 2, 3}}, Unsigned},
		{"签名长度错误", &Transaction{Signature: []byte{1, 2, 3}}, Signed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.tx, tt.variant)
			require.Error(t, err)
			assert.ErrorIs(t, err, errno.ErrFieldOverflow)
			assert.Equal(t, errno.KindEncoding, errno.KindOf(err))
		})
	}

	// 未签名形态忽略签名字段
	_, err := Encode(&Transaction{Signature: []byte{1, 2, 3}}, Unsigned)
	assert.NoError(t, err)

	maxValue := new(big.Int).Sub(tooBig, big.NewInt(1))
	_, err = Encode(&Transaction{Clauses: []Clause{{Value: maxValue}}}, Unsigned)
	assert.NoError(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	eight, err := rlp.EncodeToBytes([]interface{}{uint8(1), [8]byte{}, uint32(0), []Clause{}, uint8(0), uint64(0), []byte{}, uint64(0)})
	require.NoError(t, err)
	shortBlockRef, err := rlp.EncodeToBytes([]interface{}{uint8(1), [7]byte{}, uint32(0), []Clause{}, uint8(0), uint64(0), []byte{}, uint64(0), [][]byte{}})
	require.NoError(t, err)
	badDependsOn, err := rlp.EncodeToBytes([]interface{}{uint8(1), [8]byte{}, uint32(0), []Clause{}, uint8(0), uint64(0), []byte{1}, uint64(0), [][]byte{}})
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"空输入", nil},
		{"截断", mustHex(t, singleClauseTx[:len(singleClauseTx)-2])},
		{"多余字节", mustHex(t, singleClauseTx+"00")},
		{"非列表", mustHex(t, "8412345678")},
		// nonce 0x1234 写成 0x001234
		{"前导零整数", mustHex(t, "f83b"+singleClauseTx[4:len(singleClauseTx)-10]+"83001234c080")},
		// chainTag 0x05 写成 0x8105
		{"非规范单字节", mustHex(t, "f83a8105"+singleClauseTx[8:])},
		{"元素个数错误", eight},
		{"blockRef 长度错误", shortBlockRef},
		{"dependsOn 长度错误", badDependsOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, errno.ErrMalformedEncoding)
			assert.Equal(t, errno.KindSyntax, errno.KindOf(err))
		})
	}
}
