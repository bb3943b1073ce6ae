package response

import (
	"fmt"
	"strings"

	"ledger-core/pkg/apdu"
	"ledger-core/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	PublicKeyLength = 65
	AddressLength   = 40 // 不带 0x 的十六进制字符数
	ChainCodeLength = 32
	SignatureLength = 65
	ConfigLength    = 4
)

// 应用配置标志位
const (
	FlagDataAllowed        byte = 0x01
	FlagMultiClauseAllowed byte = 0x02
)

// Mode 协议模式，决定签名响应的布局
type Mode int

const (
	ModeApp    Mode = iota // r ‖ s ‖ v, v ∈ {0,1}
	ModeLegacy             // v ‖ r ‖ s, v = 2·chainID + 35/36
)

func (m Mode) String() string {
	if m == ModeLegacy {
		return "legacy"
	}
	return "app"
}

// PublicKey GET_PUBLIC_KEY 响应
type PublicKey struct {
	Key       []byte // 65 字节非压缩公钥
	Address   common.Address
	ChainCode []byte // 仅 P2=chaincode 时存在
}

// Signature 签名结果，R/S 各 32 字节，V 为恢复标记
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// Bytes r ‖ s ‖ v，与 go-ethereum crypto.Sign 的布局一致
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureLength)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	return append(out, s.V)
}

// AppConfiguration GET_APP_CONFIGURATION 响应
type AppConfiguration struct {
	DataAllowed        bool
	MultiClauseAllowed bool
	Major              byte
	Minor              byte
	Patch              byte
}

// Version 形如 1.1.1
func (c AppConfiguration) Version() string {
	return fmt.Sprintf("%d.%d.%d", c.Major, c.Minor, c.Patch)
}

// ParsePublicKey 公钥长度 ‖ 公钥 [‖ 地址长度 ‖ 地址] [‖ 链码]
func ParsePublicKey(data []byte) (*PublicKey, error) {
	if len(data) < 1 {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "publicKey", "empty response")
	}
	if data[0] != PublicKeyLength {
		return nil, errno.Newf(errno.ErrUnexpectedKeyLength, "publicKey", "length byte %d, want %d", data[0], PublicKeyLength)
	}
	if len(data) < 1+PublicKeyLength {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "publicKey", "%d bytes, key needs %d", len(data), 1+PublicKeyLength)
	}
	key := common.CopyBytes(data[1 : 1+PublicKeyLength])
	pub, err := crypto.UnmarshalPubkey(key)
	if err != nil {
		return nil, errno.Wrap(errno.ErrInvalidPublicKey, "publicKey", err)
	}
	out := &PublicKey{Key: key, Address: crypto.PubkeyToAddress(*pub)}

	rest := data[1+PublicKeyLength:]
	if len(rest) == 0 {
		return out, nil
	}

	addrLen := int(rest[0])
	if addrLen != AddressLength || len(rest) < 1+addrLen {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "address", "length byte %d, %d bytes left", addrLen, len(rest)-1)
	}
	addr := string(rest[1 : 1+addrLen])
	if !strings.EqualFold(addr, out.Address.Hex()[2:]) {
		return nil, errno.Newf(errno.ErrAddressMismatch, "address", "device reported %s, key derives %s", addr, out.Address.Hex())
	}

	rest = rest[1+addrLen:]
	switch len(rest) {
	case 0:
	case ChainCodeLength:
		out.ChainCode = common.CopyBytes(rest)
	default:
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "chainCode", "%d bytes, want %d", len(rest), ChainCodeLength)
	}
	return out, nil
}

// ParseSignature 应用协议签名: r(32) ‖ s(32) ‖ v(1)，v 只能是 0 或 1
func ParseSignature(data []byte) (*Signature, error) {
	if len(data) != SignatureLength {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "signature", "%d bytes, want %d", len(data), SignatureLength)
	}
	v := data[64]
	if v > 1 {
		return nil, errno.Newf(errno.ErrIllegalRecoveryTag, "signature", "v = 0x%02x", v)
	}
	sig := &Signature{V: v}
	copy(sig.R[:], data[0:32])
	copy(sig.S[:], data[32:64])
	return sig, nil
}

// ParseLegacySignature 旧版签名: v(1) ‖ r(32) ‖ s(32)，v 只能是 2·chainID+35 或 2·chainID+36
func ParseLegacySignature(data []byte, chainID uint64) (*Signature, error) {
	if len(data) != SignatureLength {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "signature", "%d bytes, want %d", len(data), SignatureLength)
	}
	base := 2*chainID + 35
	v := uint64(data[0])
	if v != base && v != base+1 {
		return nil, errno.Newf(errno.ErrIllegalRecoveryTag, "signature", "v = %d, want %d or %d", v, base, base+1)
	}
	sig := &Signature{V: data[0]}
	copy(sig.R[:], data[1:33])
	copy(sig.S[:], data[33:65])
	return sig, nil
}

// RecoveryID 归一化为 0/1 的恢复标记
func (s Signature) RecoveryID(mode Mode, chainID uint64) byte {
	if mode == ModeLegacy {
		return byte(uint64(s.V) - (2*chainID + 35))
	}
	return s.V
}

// ParseAppConfiguration 标志位 ‖ major ‖ minor ‖ patch
func ParseAppConfiguration(data []byte) (*AppConfiguration, error) {
	if len(data) != ConfigLength {
		return nil, errno.Newf(errno.ErrUnexpectedResponseLength, "configuration", "%d bytes, want %d", len(data), ConfigLength)
	}
	return &AppConfiguration{
		DataAllowed:        data[0]&FlagDataAllowed != 0,
		MultiClauseAllowed: data[0]&FlagMultiClauseAllowed != 0,
		Major:              data[1],
		Minor:              data[2],
		Patch:              data[3],
	}, nil
}

// Parse 按指令与协议模式解析最后一帧的响应数据
// 返回 *PublicKey、*Signature 或 *AppConfiguration
func Parse(ins byte, mode Mode, data []byte, chainID uint64) (interface{}, error) {
	switch ins {
	case apdu.InsGetPublicKey:
		return ParsePublicKey(data)
	case apdu.InsGetAppConfiguration:
		return ParseAppConfiguration(data)
	case apdu.InsSign, apdu.InsSignPersonalMessage, apdu.InsSignCertificate:
		if mode == ModeLegacy {
			return ParseLegacySignature(data, chainID)
		}
		return ParseSignature(data)
	default:
		return nil, errno.Newf(errno.ErrInvalidInput, "ins", "no parser for %s", apdu.InsName(ins))
	}
}
