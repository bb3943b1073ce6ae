package request

import "ledger-core/pkg/vettx"

// EncodePathRequest 编码派生路径
type EncodePathRequest struct {
	Path string `json:"path" binding:"required"`
}

// EncodeTxRequest 编码交易
type EncodeTxRequest struct {
	Transaction *vettx.Transaction `json:"transaction" binding:"required"`
	Signed      bool               `json:"signed"`
}

// DecodeTxRequest 解码十六进制交易
type DecodeTxRequest struct {
	Raw string `json:"raw" binding:"required"`
}
