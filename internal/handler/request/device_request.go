package request

import (
	"encoding/json"

	"ledger-core/pkg/vettx"
)

// PublicKeyRequest 读取公钥，path 为空时使用 m/44'/818'/0'/0/0
type PublicKeyRequest struct {
	Path      string `json:"path" binding:"omitempty,bip32path"`
	Confirm   bool   `json:"confirm"`
	ChainCode bool   `json:"chain_code"`
}

// SignTxRequest 签名交易
type SignTxRequest struct {
	Path        string             `json:"path" binding:"omitempty,bip32path"`
	Transaction *vettx.Transaction `json:"transaction" binding:"required"`
	Legacy      bool               `json:"legacy"`
}

// SignMessageRequest 签名个人消息
type SignMessageRequest struct {
	Path    string `json:"path" binding:"omitempty,bip32path"`
	Message string `json:"message" binding:"required"`
}

// SignCertificateRequest 签名证书
type SignCertificateRequest struct {
	Path        string          `json:"path" binding:"omitempty,bip32path"`
	Certificate json.RawMessage `json:"certificate" binding:"required"`
}
