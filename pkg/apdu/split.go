package apdu

import (
	"ledger-core/pkg/errno"
)

// Split 按 maxChunk 切分负载，各块拼接后与原负载逐字节相同
// 空负载返回一个空块；长度恰为 maxChunk 整数倍时不产生末尾空块
func Split(payload []byte, maxChunk int) ([][]byte, error) {
	if maxChunk < 1 || maxChunk > MaxChunk {
		return nil, errno.Newf(errno.ErrChunkSize, "maxChunk", "%d not in [1, %d]", maxChunk, MaxChunk)
	}
	if len(payload) == 0 {
		return [][]byte{{}}, nil
	}

	chunks := make([][]byte, 0, (len(payload)+maxChunk-1)/maxChunk)
	for offset := 0; offset < len(payload); offset += maxChunk {
		end := offset + maxChunk
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[offset:end:end])
	}
	return chunks, nil
}

// Command 一条逻辑命令，发送时拆成一个或多个帧
type Command struct {
	Ins     byte
	Payload []byte
	// Confirm 仅 GET_PUBLIC_KEY: 要求用户在屏幕上确认地址
	Confirm bool
	// ChainCode 仅 GET_PUBLIC_KEY: 响应中附带链码
	ChainCode bool
}

// BuildCommandSequence 生成帧序列
// 第一帧 P1=start (或 confirm)，后续帧 P1=more，P2 固定
func BuildCommandSequence(cmd Command, maxChunk int) ([]Frame, error) {
	if (cmd.Confirm || cmd.ChainCode) && cmd.Ins != InsGetPublicKey {
		return nil, errno.Newf(errno.ErrInvalidInput, "command", "confirm/chaincode only apply to %s", InsName(InsGetPublicKey))
	}

	chunks, err := Split(cmd.Payload, maxChunk)
	if err != nil {
		return nil, err
	}

	first := P1Start
	if cmd.Confirm {
		first = P1Confirm
	}
	p2 := P2Last
	if cmd.ChainCode {
		p2 = P2ChainCode
	}

	frames := make([]Frame, len(chunks))
	for i, chunk := range chunks {
		p1 := P1More
		if i == 0 {
			p1 = first
		}
		frames[i] = Frame{Cla: CLA, Ins: cmd.Ins, P1: p1, P2: p2, Data: chunk}
	}
	return frames, nil
}
