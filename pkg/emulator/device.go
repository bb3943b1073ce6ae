package emulator

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"sync"

	"ledger-core/pkg/apdu"
	"ledger-core/pkg/bip32"
	"ledger-core/pkg/crypto_util"
	"ledger-core/pkg/errno"
	"ledger-core/pkg/logger"
	"ledger-core/pkg/response"
	"ledger-core/pkg/vettx"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"
)

// 设备返回的状态字
const (
	swOK                 uint16 = 0x9000
	swCancelled          uint16 = 0x6985
	swTechnicalProblem   uint16 = 0x6F00
	swIncorrectData      uint16 = 0x6A80
	swIncorrectP1P2      uint16 = 0x6B00
	swInvalidMessageSize uint16 = 0x6A83
	swNotEnoughMemory    uint16 = 0x6A84
	swClaNotSupported    uint16 = 0x6E00
	swInsNotSupported    uint16 = 0x6D00
)

// maxTxLength 交易缓冲区上限
const maxTxLength = 8 * 1024

// Version 模拟的应用版本
var Version = [3]byte{1, 1, 1}

// Settings 设备端设置
type Settings struct {
	DataAllowed        bool
	MultiClauseAllowed bool
	// Reject 所有需要确认的操作都被用户拒绝
	Reject bool
	// Legacy 签名以 v ‖ r ‖ s 返回，v = 2·ChainID + 35 + recid
	Legacy  bool
	ChainID uint64
}

// Prompt 需要用户在屏幕上确认的请求
type Prompt struct {
	Ins     byte
	Summary string
}

// ConfirmFunc 模拟用户确认，返回 false 表示拒绝
type ConfirmFunc func(ctx context.Context, p Prompt) bool

// Device 软件设备，实现 exchange.Transport
type Device struct {
	mu       sync.Mutex
	wallet   *bip32.Wallet
	settings Settings
	confirm  ConfirmFunc
	log      *zap.Logger

	// 多帧命令的进行中状态
	pending *stream
}

type stream struct {
	ins       byte
	path      bip32.DerivationPath
	buf       []byte
	remaining uint32 // 仅个人消息/证书
}

// Option 配置 Device
type Option func(*Device)

// WithSettings 设置设备端开关
func WithSettings(s Settings) Option {
	return func(d *Device) {
		d.settings = s
	}
}

// WithConfirm 替换用户确认逻辑
func WithConfirm(fn ConfirmFunc) Option {
	return func(d *Device) {
		d.confirm = fn
	}
}

// New 用助记词创建软件设备
func New(mnemonic string, opts ...Option) (*Device, error) {
	wallet, err := bip32.NewWalletFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	d := &Device{
		wallet: wallet,
		log:    logger.Named("emulator"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetSettings 修改设备设置，对下一条命令生效
func (d *Device) SetSettings(s Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}

// Exchange 处理一条命令帧
func (d *Device) Exchange(ctx context.Context, command []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, sw := d.handle(ctx, command)
	if sw != swOK {
		d.log.Debug("command rejected", logger.Hex("apdu", command), zap.Uint16("sw", sw))
	}
	return apdu.Response{Data: data, SW: sw}.Bytes()
}

func (d *Device) handle(ctx context.Context, command []byte) ([]byte, uint16) {
	frame, err := apdu.ParseFrame(command)
	if err != nil {
		return nil, swInvalidMessageSize
	}
	if frame.Cla != apdu.CLA {
		return nil, swClaNotSupported
	}

	switch frame.Ins {
	case apdu.InsGetAppConfiguration:
		return d.appConfiguration(), swOK
	case apdu.InsGetPublicKey:
		return d.publicKey(ctx, frame)
	case apdu.InsSign:
		return d.signTransaction(ctx, frame)
	case apdu.InsSignPersonalMessage, apdu.InsSignCertificate:
		return d.signMessage(ctx, frame)
	default:
		return nil, swInsNotSupported
	}
}

func (d *Device) appConfiguration() []byte {
	var flags byte
	if d.settings.DataAllowed {
		flags |= response.FlagDataAllowed
	}
	if d.settings.MultiClauseAllowed {
		flags |= response.FlagMultiClauseAllowed
	}
	return []byte{flags, Version[0], Version[1], Version[2]}
}

func (d *Device) publicKey(ctx context.Context, f apdu.Frame) ([]byte, uint16) {
	if f.P1 != apdu.P1Start && f.P1 != apdu.P1Confirm {
		return nil, swIncorrectP1P2
	}
	if f.P2 != apdu.P2Last && f.P2 != apdu.P2ChainCode {
		return nil, swIncorrectP1P2
	}
	path, _, err := bip32.DecodePath(f.Data)
	if err != nil {
		return nil, swIncorrectData
	}
	key, err := d.wallet.Derive(path)
	if err != nil {
		return nil, swTechnicalProblem
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, swTechnicalProblem
	}
	address := crypto.PubkeyToAddress(*pub.ToECDSA()).Hex()[2:]

	if f.P1 == apdu.P1Confirm && !d.approve(ctx, Prompt{Ins: f.Ins, Summary: "0x" + address}) {
		return nil, swCancelled
	}

	out := make([]byte, 0, 1+response.PublicKeyLength+1+response.AddressLength+response.ChainCodeLength)
	out = append(out, response.PublicKeyLength)
	out = append(out, pub.SerializeUncompressed()...)
	out = append(out, response.AddressLength)
	out = append(out, address...)
	if f.P2 == apdu.P2ChainCode {
		out = append(out, key.ChainCode()...)
	}
	return out, swOK
}

func (d *Device) signTransaction(ctx context.Context, f apdu.Frame) ([]byte, uint16) {
	if f.P2 != apdu.P2Last {
		return nil, swIncorrectP1P2
	}
	switch f.P1 {
	case apdu.P1Start:
		path, rest, err := bip32.DecodePath(f.Data)
		if err != nil {
			d.pending = nil
			return nil, swIncorrectData
		}
		d.pending = &stream{ins: f.Ins, path: path, buf: append([]byte(nil), rest...)}
	case apdu.P1More:
		if d.pending == nil || d.pending.ins != f.Ins {
			return nil, swCancelled
		}
		if len(d.pending.buf)+len(f.Data) > maxTxLength {
			d.pending = nil
			return nil, swNotEnoughMemory
		}
		d.pending.buf = append(d.pending.buf, f.Data...)
	default:
		return nil, swIncorrectP1P2
	}

	complete, err := rlpComplete(d.pending.buf)
	if err != nil {
		d.pending = nil
		return nil, swIncorrectData
	}
	if !complete {
		return nil, swOK
	}

	s := d.pending
	d.pending = nil

	tx, _, err := vettx.Decode(s.buf)
	if err != nil {
		return nil, swIncorrectData
	}
	if tx.HasData() && !d.settings.DataAllowed {
		return nil, swIncorrectData
	}
	if len(tx.Clauses) > 1 && !d.settings.MultiClauseAllowed {
		return nil, swIncorrectData
	}
	hash, err := tx.SigningHash()
	if err != nil {
		return nil, swIncorrectData
	}

	summary := make([]string, len(tx.Clauses))
	for i, c := range tx.Clauses {
		summary[i] = c.String()
	}
	if !d.approve(ctx, Prompt{Ins: f.Ins, Summary: strings.Join(summary, "; ")}) {
		return nil, swCancelled
	}
	return d.sign(s.path, hash[:])
}

func (d *Device) signMessage(ctx context.Context, f apdu.Frame) ([]byte, uint16) {
	if f.P2 != apdu.P2Last {
		return nil, swIncorrectP1P2
	}
	data := f.Data
	switch f.P1 {
	case apdu.P1Start:
		path, rest, err := bip32.DecodePath(data)
		if err != nil || len(rest) < 4 {
			d.pending = nil
			return nil, swIncorrectData
		}
		d.pending = &stream{ins: f.Ins, path: path, remaining: binary.BigEndian.Uint32(rest)}
		data = rest[4:]
		if f.Ins == apdu.InsSignCertificate && (len(data) == 0 || data[0] != '{') {
			d.pending = nil
			return nil, swIncorrectData
		}
	case apdu.P1More:
		if d.pending == nil || d.pending.ins != f.Ins {
			return nil, swCancelled
		}
	default:
		return nil, swIncorrectP1P2
	}

	if uint32(len(data)) > d.pending.remaining {
		d.pending = nil
		return nil, swNotEnoughMemory
	}
	d.pending.buf = append(d.pending.buf, data...)
	d.pending.remaining -= uint32(len(data))
	if d.pending.remaining > 0 {
		return nil, swOK
	}

	s := d.pending
	d.pending = nil

	var hash [32]byte
	if f.Ins == apdu.InsSignCertificate {
		if s.buf[len(s.buf)-1] != '}' {
			return nil, swIncorrectData
		}
		hash = crypto_util.CertificateHash(s.buf)
	} else {
		hash = crypto_util.PersonalMessageHash(s.buf)
	}

	if !d.approve(ctx, Prompt{Ins: f.Ins, Summary: string(s.buf)}) {
		return nil, swCancelled
	}
	return d.sign(s.path, hash[:])
}

func (d *Device) sign(path bip32.DerivationPath, hash []byte) ([]byte, uint16) {
	key, err := d.wallet.Derive(path)
	if err != nil {
		return nil, swTechnicalProblem
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, swTechnicalProblem
	}
	sig, err := crypto.Sign(hash, priv.ToECDSA())
	if err != nil {
		return nil, swTechnicalProblem
	}
	if !d.settings.Legacy {
		return sig, swOK
	}

	// v ‖ r ‖ s
	if 2*d.settings.ChainID+36 > 0xff {
		return nil, swTechnicalProblem
	}
	out := make([]byte, 0, len(sig))
	out = append(out, byte(2*d.settings.ChainID+35)+sig[64])
	return append(out, sig[:64]...), swOK
}

func (d *Device) approve(ctx context.Context, p Prompt) bool {
	if d.settings.Reject {
		return false
	}
	if d.confirm == nil {
		return true
	}
	return d.confirm(ctx, p)
}

// rlpComplete 判断缓冲区是否已包含一个完整的 RLP 值
func rlpComplete(buf []byte) (bool, error) {
	_, _, rest, err := rlp.Split(buf)
	switch {
	case errors.Is(err, rlp.ErrValueTooLarge), errors.Is(err, io.ErrUnexpectedEOF):
		return false, nil
	case err != nil:
		return false, errno.Wrap(errno.ErrMalformedEncoding, "transaction", err)
	case len(rest) > 0:
		return false, errno.Newf(errno.ErrMalformedEncoding, "transaction", "%d trailing bytes", len(rest))
	}
	return true, nil
}
