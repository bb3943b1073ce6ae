package handler

import (
	"context"
	"time"

	"ledger-core/internal/handler/request"
	"ledger-core/internal/handler/response"
	"ledger-core/pkg/bip32"
	"ledger-core/pkg/ledger"
	resp "ledger-core/pkg/response"
	"ledger-core/pkg/validator"
	"ledger-core/pkg/vettx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// DeviceHandler 需要设备参与的接口，所有请求共享一个设备会话
type DeviceHandler struct {
	client  *ledger.Client
	timeout time.Duration
}

// NewDeviceHandler timeout 覆盖等待用户确认的时间
func NewDeviceHandler(client *ledger.Client, timeout time.Duration) *DeviceHandler {
	return &DeviceHandler{client: client, timeout: timeout}
}

func (h *DeviceHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func pathOrDefault(path string) string {
	if path == "" {
		return bip32.DefaultPath
	}
	return path
}

// Configuration GET /api/v1/device/configuration
func (h *DeviceHandler) Configuration(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	cfg, err := h.client.GetAppConfiguration(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"version":            cfg.Version(),
		"dataAllowed":        cfg.DataAllowed,
		"multiClauseAllowed": cfg.MultiClauseAllowed,
	})
}

// PublicKey POST /api/v1/device/public-key
func (h *DeviceHandler) PublicKey(c *gin.Context) {
	var req request.PublicKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	pk, err := h.client.GetPublicKey(ctx, pathOrDefault(req.Path), req.Confirm, req.ChainCode)
	if err != nil {
		response.Error(c, err)
		return
	}

	data := gin.H{
		"path":      pathOrDefault(req.Path),
		"publicKey": hexutil.Encode(pk.Key),
		"address":   pk.Address.Hex(),
	}
	if len(pk.ChainCode) > 0 {
		data["chainCode"] = hexutil.Encode(pk.ChainCode)
	}
	response.Success(c, data)
}

// SignTx POST /api/v1/device/sign-tx
// 返回签名与带签名的交易编码
func (h *DeviceHandler) SignTx(c *gin.Context) {
	var req request.SignTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	var (
		sig *resp.Signature
		err error
	)
	if req.Legacy {
		sig, err = h.client.LegacySignTransaction(ctx, pathOrDefault(req.Path), req.Transaction)
		if err == nil {
			sig.V = sig.RecoveryID(resp.ModeLegacy, h.client.ChainID())
		}
	} else {
		sig, err = h.client.SignTransaction(ctx, pathOrDefault(req.Path), req.Transaction)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	signed, err := req.Transaction.WithSignature(sig.Bytes())
	if err != nil {
		response.Error(c, err)
		return
	}
	raw, err := vettx.Encode(signed, vettx.Signed)
	if err != nil {
		response.Error(c, err)
		return
	}

	data := describeTx(signed, vettx.Signed)
	data["signature"] = hexutil.Encode(sig.Bytes())
	data["raw"] = hexutil.Encode(raw)
	response.Success(c, data)
}

// SignMessage POST /api/v1/device/sign-message
func (h *DeviceHandler) SignMessage(c *gin.Context) {
	var req request.SignMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	sig, err := h.client.SignPersonalMessage(ctx, pathOrDefault(req.Path), []byte(req.Message))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"signature": hexutil.Encode(sig.Bytes())})
}

// SignCertificate POST /api/v1/device/sign-certificate
// 证书原样转发给设备，调用方负责提供规范化的 JSON
func (h *DeviceHandler) SignCertificate(c *gin.Context) {
	var req request.SignCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validator.BindError(err))
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	sig, err := h.client.SignCertificate(ctx, pathOrDefault(req.Path), req.Certificate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"signature": hexutil.Encode(sig.Bytes())})
}
