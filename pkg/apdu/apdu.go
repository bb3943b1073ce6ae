package apdu

import (
	"encoding/hex"
	"fmt"

	"ledger-core/pkg/errno"

	iso7816 "github.com/skythen/apdu"
)

// CLA 应用固定类字节
const CLA byte = 0xE0

// 指令
const (
	InsGetPublicKey        byte = 0x02
	InsSign                byte = 0x04
	InsGetAppConfiguration byte = 0x06
	InsSignPersonalMessage byte = 0x08
	InsSignCertificate     byte = 0x09
)

// P1 / P2 标记
const (
	P1Start   byte = 0x00 // 第一帧
	P1Confirm byte = 0x01 // GET_PUBLIC_KEY 需在屏幕上确认
	P1More    byte = 0x80 // 后续帧

	P2Last      byte = 0x00 // 不期待多帧响应
	P2ChainCode byte = 0x01 // GET_PUBLIC_KEY 同时返回链码
)

const (
	// HeaderLength CLA INS P1 P2 Lc
	HeaderLength = 5
	// MaxChunk 应用协议单帧数据上限
	MaxChunk = 255
	// LegacyMaxChunk 旧版协议单帧数据上限
	LegacyMaxChunk = 150
)

// InsName 指令名，用于日志与指标标签
func InsName(ins byte) string {
	switch ins {
	case InsGetPublicKey:
		return "GET_PUBLIC_KEY"
	case InsSign:
		return "SIGN"
	case InsGetAppConfiguration:
		return "GET_APP_CONFIGURATION"
	case InsSignPersonalMessage:
		return "SIGN_PERSONAL_MESSAGE"
	case InsSignCertificate:
		return "SIGN_CERTIFICATE"
	default:
		return fmt.Sprintf("INS_%02X", ins)
	}
}

// Frame 一条命令帧
type Frame struct {
	Cla  byte
	Ins  byte
	P1   byte
	P2   byte
	Data []byte
}

// Bytes 输出 5 字节头 + 数据，Lc 始终存在 (空数据时为 0)
func (f Frame) Bytes() ([]byte, error) {
	if len(f.Data) > MaxChunk {
		return nil, errno.Newf(errno.ErrChunkSize, "frame", "%d data bytes, at most %d", len(f.Data), MaxChunk)
	}
	// ISO 7816 case 1 没有 Lc，设备固件要求显式的 Lc=0
	if len(f.Data) == 0 {
		return []byte{f.Cla, f.Ins, f.P1, f.P2, 0x00}, nil
	}
	capdu := iso7816.Capdu{Cla: f.Cla, Ins: f.Ins, P1: f.P1, P2: f.P2, Data: f.Data}
	raw, err := capdu.Bytes()
	if err != nil {
		return nil, errno.Wrap(errno.ErrInvalidInput, "frame", err)
	}
	return raw, nil
}

func (f Frame) String() string {
	return fmt.Sprintf("%02X%02X%02X%02X%02X%s", f.Cla, f.Ins, f.P1, f.P2, len(f.Data), hex.EncodeToString(f.Data))
}

// ParseFrame 解析一条命令帧，Lc 必须与数据长度一致
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < HeaderLength {
		return Frame{}, errno.Newf(errno.ErrInvalidInput, "frame", "%d bytes, header needs %d", len(raw), HeaderLength)
	}
	if int(raw[4]) != len(raw)-HeaderLength {
		return Frame{}, errno.Newf(errno.ErrInvalidInput, "frame", "Lc %d, data %d bytes", raw[4], len(raw)-HeaderLength)
	}
	if raw[4] == 0 {
		return Frame{Cla: raw[0], Ins: raw[1], P1: raw[2], P2: raw[3]}, nil
	}

	capdu, err := iso7816.ParseCapdu(raw)
	if err != nil {
		return Frame{}, errno.Wrap(errno.ErrInvalidInput, "frame", err)
	}
	return Frame{
		Cla:  capdu.Cla,
		Ins:  capdu.Ins,
		P1:   capdu.P1,
		P2:   capdu.P2,
		Data: append([]byte(nil), capdu.Data...),
	}, nil
}

// Response 设备响应: 数据 + 状态字
type Response struct {
	Data []byte
	SW   uint16
}

// ParseResponse 拆分响应数据与末尾 2 字节状态字
func ParseResponse(raw []byte) (Response, error) {
	rapdu, err := iso7816.ParseRapdu(raw)
	if err != nil {
		return Response{}, errno.Wrap(errno.ErrMalformedResponse, "response", err)
	}
	return Response{Data: rapdu.Data, SW: uint16(rapdu.SW1)<<8 | uint16(rapdu.SW2)}, nil
}

// Bytes 数据 ‖ SW1 ‖ SW2
func (r Response) Bytes() ([]byte, error) {
	rapdu := iso7816.Rapdu{Data: r.Data, SW1: byte(r.SW >> 8), SW2: byte(r.SW)}
	return rapdu.Bytes()
}

// Err 非 0x9000 时返回映射后的设备错误
func (r Response) Err() error {
	return errno.MapStatus(r.SW)
}
