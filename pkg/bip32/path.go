package bip32

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"ledger-core/pkg/errno"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// HardenedKeyStart 强化派生起始索引 (2^31)
	HardenedKeyStart = hdkeychain.HardenedKeyStart

	// MaxPathDepth 路径分量个数上限，受 1 字节计数字段限制
	MaxPathDepth = 255

	// DefaultPath VeChain 默认路径 (coin type 818)
	DefaultPath = "m/44'/818'/0'/0/0"
)

// DerivationPath 派生路径，每个分量是 32 位索引，强化分量已置高位
type DerivationPath []uint32

// ParsePath 解析路径字符串
// 支持格式: m/44'/818'/0'/0/0、44h/818h/0h/0/0，空串、m 与 m/ 为零长度路径
func ParsePath(path string) (DerivationPath, error) {
	path = strings.TrimSpace(path)

	switch {
	case path == "" || path == "m" || path == "m/":
		return DerivationPath{}, nil
	case strings.HasPrefix(path, "m/"):
		path = path[2:]
	}

	segments := strings.Split(path, "/")
	if len(segments) > MaxPathDepth {
		return nil, errno.Newf(errno.ErrInvalidPathSyntax, "path", "%d components, at most %d allowed", len(segments), MaxPathDepth)
	}

	result := make(DerivationPath, 0, len(segments))
	for i, segment := range segments {
		index, err := parseSegment(segment)
		if err != nil {
			return nil, errno.Wrap(errno.ErrInvalidPathSyntax, fmt.Sprintf("component %d %q", i, segment), err)
		}
		result = append(result, index)
	}
	return result, nil
}

func parseSegment(segment string) (uint32, error) {
	isHardened := false
	if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") || strings.HasSuffix(segment, "H") {
		isHardened = true
		segment = segment[:len(segment)-1]
	}
	if segment == "" {
		return 0, fmt.Errorf("empty component")
	}

	// ParseUint 拒绝符号前缀与空白
	val, err := strconv.ParseUint(segment, 10, 32)
	if err != nil {
		return 0, err
	}
	index := uint32(val)

	if isHardened {
		if index >= HardenedKeyStart {
			return 0, fmt.Errorf("hardened index %d out of range", index)
		}
		index += HardenedKeyStart
	}
	return index, nil
}

// EncodePath 解析并编码路径: 1 字节分量个数 + 每个分量 4 字节大端
func EncodePath(path string) ([]byte, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return p.Encode()
}

// Encode 输出设备使用的二进制路径
func (p DerivationPath) Encode() ([]byte, error) {
	if len(p) > MaxPathDepth {
		return nil, errno.Newf(errno.ErrInvalidPathSyntax, "path", "%d components, at most %d allowed", len(p), MaxPathDepth)
	}
	out := make([]byte, 1+4*len(p))
	out[0] = byte(len(p))
	for i, component := range p {
		binary.BigEndian.PutUint32(out[1+4*i:], component)
	}
	return out, nil
}

// DecodePath 从缓冲区头部读取一个二进制路径，返回剩余字节
func DecodePath(buf []byte) (DerivationPath, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, errno.Newf(errno.ErrInvalidPathSyntax, "path", "missing component count")
	}
	count := int(buf[0])
	if len(buf) < 1+4*count {
		return nil, nil, errno.Newf(errno.ErrInvalidPathSyntax, "path", "need %d bytes, have %d", 1+4*count, len(buf))
	}
	p := make(DerivationPath, count)
	for i := range p {
		p[i] = binary.BigEndian.Uint32(buf[1+4*i:])
	}
	return p, buf[1+4*count:], nil
}

// String 以 m/44'/818'/0'/0/0 形式输出
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, component := range p {
		b.WriteByte('/')
		if component >= HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(component-HardenedKeyStart), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(component), 10))
		}
	}
	return b.String()
}
