package apdu

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"ledger-core/pkg/bip32"
	"ledger-core/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		maxChunk int
		want     []int
	}{
		{"空负载产生一个空块", 0, 255, []int{0}},
		{"小于上限", 10, 255, []int{10}},
		{"恰好等于上限", 255, 255, []int{255}},
		{"整数倍不产生空块", 300, 150, []int{150, 150}},
		{"有余数", 301, 150, []int{150, 150, 1}},
		{"单字节块", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i)
			}

			chunks, err := Split(payload, tt.maxChunk)
			require.NoError(t, err)

			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c)
			}
			assert.Equal(t, tt.want, sizes)
			assert.Equal(t, payload, bytes.Join(chunks, nil))
		})
	}
}

func TestSplitChunkSize(t *testing.T) {
	for _, maxChunk := range []int{0, -1, 256} {
		_, err := Split([]byte{1}, maxChunk)
		assert.ErrorIs(t, err, errno.ErrChunkSize, "maxChunk=%d", maxChunk)
		assert.Equal(t, errno.KindEncoding, errno.KindOf(err))
	}
}

func TestBuildCommandSequence(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 400)
	frames, err := BuildCommandSequence(Command{Ins: InsSign, Payload: payload}, MaxChunk)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	first, err := frames[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe0, 0x04, 0x00, 0x00, 0xff}, first[:HeaderLength])
	assert.Len(t, first, HeaderLength+255)

	second, err := frames[1].Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe0, 0x04, 0x80, 0x00, 145}, second[:HeaderLength])

	// legacy 模式按 150 切分
	frames, err = BuildCommandSequence(Command{Ins: InsSign, Payload: payload}, LegacyMaxChunk)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestBuildCommandSequenceEmpty(t *testing.T) {
	frames, err := BuildCommandSequence(Command{Ins: InsGetAppConfiguration}, MaxChunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	raw, err := frames[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, "e006000000", hex.EncodeToString(raw))
}

func TestBuildCommandSequencePublicKeyFlags(t *testing.T) {
	path, err := bip32.ParsePath(bip32.DefaultPath)
	require.NoError(t, err)
	payload, err := PathPayload(path)
	require.NoError(t, err)

	frames, err := BuildCommandSequence(Command{Ins: InsGetPublicKey, Payload: payload, Confirm: true, ChainCode: true}, MaxChunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	raw, err := frames[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, "e002010115058000002c80000332800000000000000000000000", hex.EncodeToString(raw))

	_, err = BuildCommandSequence(Command{Ins: InsSign, Confirm: true}, MaxChunk)
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}

func TestParseFrame(t *testing.T) {
	raw, _ := hex.DecodeString("e00480000301020a")
	f, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, InsSign, f.Ins)
	assert.Equal(t, P1More, f.P1)
	assert.Equal(t, []byte{0x01, 0x02, 0x0a}, f.Data)
	assert.Equal(t, "E00480000301020a", f.String())

	_, err = ParseFrame(raw[:4])
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
	_, err = ParseFrame(raw[:7])
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}

func TestFrameBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"空数据保留 Lc=0", nil, "e006000000"},
		{"两字节", []byte{0x01, 0x02}, "e0048000020102"},
		{"满帧", bytes.Repeat([]byte{0xcd}, MaxChunk), "e0040000ff" + strings.Repeat("cd", MaxChunk)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := hex.DecodeString(tt.want)
			f, err := ParseFrame(raw)
			require.NoError(t, err)
			assert.Len(t, f.Data, len(tt.data))

			out, err := f.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(out))
		})
	}

	_, err := Frame{Cla: CLA, Ins: InsSign, Data: make([]byte, MaxChunk+1)}.Bytes()
	assert.ErrorIs(t, err, errno.ErrChunkSize)

	// 末尾多出一个字节不能被当作 Le 接受
	_, err = ParseFrame([]byte{0xe0, 0x04, 0x00, 0x00, 0x01, 0xaa, 0x00})
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte{0x01, 0x02, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, resp.Data)
	assert.Equal(t, errno.SWOk, resp.SW)
	assert.NoError(t, resp.Err())

	resp, err = ParseResponse([]byte{0x69, 0x85})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.ErrorIs(t, resp.Err(), errno.ErrUserCancelled)

	_, err = ParseResponse([]byte{0x90})
	assert.ErrorIs(t, err, errno.ErrMalformedResponse)

	raw, err := Response{Data: []byte{0xaa}, SW: 0x6a80}.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0x6a, 0x80}, raw)
}

func TestMessagePayload(t *testing.T) {
	path, err := bip32.ParsePath("m/44'/818'")
	require.NoError(t, err)

	payload, err := MessagePayload(path, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "02"+"8000002c"+"80000332"+"00000002"+"6869", hex.EncodeToString(payload))

	payload, err = TransactionPayload(path, []byte{0xc0})
	require.NoError(t, err)
	assert.Equal(t, "02"+"8000002c"+"80000332"+"c0", hex.EncodeToString(payload))
}
