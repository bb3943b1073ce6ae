package crypto_util

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// personalMessagePrefix VeChain 个人消息签名前缀
const personalMessagePrefix = "\x19VeChain Signed Message:\n"

// Blake2b256 计算各部分依次拼接后的 blake2b-256 哈希。
// VeChain 的交易签名哈希、交易 ID 都使用该算法。
func Blake2b256(parts ...[]byte) [32]byte {
	hash, _ := blake2b.New256(nil)
	for _, p := range parts {
		hash.Write(p)
	}
	var out [32]byte
	copy(out[:], hash.Sum(nil))
	return out
}

// CalculateBlake2b256 计算输入的 blake2b-256 哈希值，返回十六进制。
func CalculateBlake2b256(data []byte) string {
	hash := Blake2b256(data)
	return hex.EncodeToString(hash[:])
}

// PersonalMessageHash 设备对个人消息签名前使用的摘要:
// blake2b("\x19VeChain Signed Message:\n" + 十进制长度 + 消息)
func PersonalMessageHash(message []byte) [32]byte {
	return Blake2b256([]byte(personalMessagePrefix), []byte(strconv.Itoa(len(message))), message)
}

// CertificateHash 证书签名摘要，即证书 JSON 的 blake2b-256
func CertificateHash(certificate []byte) [32]byte {
	return Blake2b256(certificate)
}

// Keccak256 计算 Keccak256 哈希 (以太坊/VeChain 地址派生)。
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// CalculateKeccak256 计算输入的 Keccak256 哈希值。
func CalculateKeccak256(data []byte) string {
	return hex.EncodeToString(Keccak256(data))
}
