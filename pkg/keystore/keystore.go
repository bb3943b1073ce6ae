package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// Key 加密保存的模拟设备助记词，结构沿用 Ethereum Keystore V3 的字段命名
type Key struct {
	Crypto  CryptoJSON `json:"crypto"`
	ID      string     `json:"id"`
	Version int        `json:"version"`
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

// ScryptParams 派生密钥的开销参数
type ScryptParams struct {
	N int
	R int
	P int
}

var (
	// StandardScrypt 生产使用
	StandardScrypt = ScryptParams{N: 1 << 18, R: 8, P: 1}
	// LightScrypt 开发与测试使用
	LightScrypt = ScryptParams{N: 1 << 12, R: 8, P: 6}
)

const (
	cipherName = "aes-256-gcm"
	kdfName    = "scrypt"
	keyLen     = 32
	version    = 3
)

var (
	ErrWrongPassword = errors.New("invalid password or corrupted data (MAC mismatch)")
	ErrUnsupported   = errors.New("unsupported keystore format")
)

// Seal 用密码加密助记词
func Seal(mnemonic, password string, params ScryptParams) (*Key, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	derived, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, keyLen)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(derived)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(mnemonic), nil)

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return &Key{
		Version: version,
		ID:      id.String(),
		Crypto: CryptoJSON{
			Cipher:       cipherName,
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(nonce)},
			KDF:          kdfName,
			KDFParams: KDFParams{
				DKLen: keyLen,
				N:     params.N,
				R:     params.R,
				P:     params.P,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac(derived, ciphertext)),
		},
	}, nil
}

// Open 解密得到助记词
func (k *Key) Open(password string) (string, error) {
	if k.Crypto.Cipher != cipherName || k.Crypto.KDF != kdfName || k.Crypto.KDFParams.DKLen != keyLen {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupported, k.Crypto.KDF, k.Crypto.Cipher)
	}

	fields := map[string]string{
		"salt":       k.Crypto.KDFParams.Salt,
		"iv":         k.Crypto.CipherParams.IV,
		"ciphertext": k.Crypto.CipherText,
		"mac":        k.Crypto.MAC,
	}
	decoded := make(map[string][]byte, len(fields))
	for name, value := range fields {
		b, err := hex.DecodeString(value)
		if err != nil {
			return "", fmt.Errorf("invalid %s: %w", name, err)
		}
		decoded[name] = b
	}

	p := k.Crypto.KDFParams
	derived, err := scrypt.Key([]byte(password), decoded["salt"], p.N, p.R, p.P, p.DKLen)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare(decoded["mac"], mac(derived, decoded["ciphertext"])) != 1 {
		return "", ErrWrongPassword
	}

	gcm, err := newGCM(derived)
	if err != nil {
		return "", err
	}
	if len(decoded["iv"]) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv length %d", ErrUnsupported, len(decoded["iv"]))
	}
	plaintext, err := gcm.Open(nil, decoded["iv"], decoded["ciphertext"], nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// Save 以 0600 权限写入文件，文件已存在时报错
func (k *Key) Save(path string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load 从文件读取
func Load(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var k Key
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return &k, nil
}

// LoadMnemonic 读取并解密
func LoadMnemonic(path, password string) (string, error) {
	k, err := Load(path)
	if err != nil {
		return "", err
	}
	return k.Open(password)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// mac sha256(derivedKey ‖ ciphertext)
func mac(derived, ciphertext []byte) []byte {
	h := sha256.New()
	h.Write(derived)
	h.Write(ciphertext)
	return h.Sum(nil)
}
