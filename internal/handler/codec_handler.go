package handler

import (
	"encoding/hex"
	"strings"

	"ledger-core/internal/handler/request"
	"ledger-core/internal/handler/response"
	"ledger-core/pkg/bip32"
	"ledger-core/pkg/errno"
	"ledger-core/pkg/validator"
	"ledger-core/pkg/vettx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// CodecHandler 不需要设备的编解码接口
type CodecHandler struct{}

var Codec = &CodecHandler{}

// EncodePath POST /api/v1/path/encode
func (h *CodecHandler) EncodePath(c *gin.Context) {
	var req request.EncodePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	p, err := bip32.ParsePath(req.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	encoded, err := p.Encode()
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"path":    p.String(),
		"depth":   len(p),
		"encoded": hexutil.Encode(encoded),
	})
}

// EncodeTx POST /api/v1/tx/encode
func (h *CodecHandler) EncodeTx(c *gin.Context) {
	var req request.EncodeTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	variant := vettx.Unsigned
	if req.Signed {
		variant = vettx.Signed
	}
	raw, err := vettx.Encode(req.Transaction, variant)
	if err != nil {
		response.Error(c, err)
		return
	}
	hash, err := req.Transaction.SigningHash()
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"variant":     variant.String(),
		"raw":         hexutil.Encode(raw),
		"signingHash": hash.Hex(),
	})
}

// DecodeTx POST /api/v1/tx/decode
func (h *CodecHandler) DecodeTx(c *gin.Context) {
	var req request.DecodeTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(req.Raw, "0x"))
	if err != nil {
		response.Error(c, errno.Wrap(errno.ErrInvalidInput, "raw", err))
		return
	}
	tx, variant, err := vettx.Decode(raw)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, describeTx(tx, variant))
}

// describeTx 交易的展示视图，已签名时附带发起方与交易 ID
func describeTx(tx *vettx.Transaction, variant vettx.Variant) gin.H {
	view := gin.H{
		"variant":     variant.String(),
		"transaction": tx,
		"totalValue":  vettx.FormatVET(tx.TotalValue()) + " VET",
	}
	if hash, err := tx.SigningHash(); err == nil {
		view["signingHash"] = hash.Hex()
	}
	if len(tx.Signature) == vettx.SignatureLength {
		if signer, err := tx.Signer(); err == nil {
			view["signer"] = signer.Hex()
		}
		if id, err := tx.ID(); err == nil {
			view["id"] = id.Hex()
		}
	}
	return view
}
