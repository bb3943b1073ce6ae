package ledger

import (
	"context"
	"encoding/json"

	"ledger-core/pkg/apdu"
	"ledger-core/pkg/bip32"
	"ledger-core/pkg/errno"
	"ledger-core/pkg/exchange"
	"ledger-core/pkg/response"
	"ledger-core/pkg/vettx"
)

// Client VeChain 应用的命令层，所有命令串行地经过同一个 Sequencer
type Client struct {
	seq            *exchange.Sequencer
	maxChunk       int
	legacyMaxChunk int
	chainID        uint64
}

// Option 配置 Client
type Option func(*Client)

// WithMaxChunk 应用协议单帧数据上限
func WithMaxChunk(n int) Option {
	return func(c *Client) {
		c.maxChunk = n
	}
}

// WithLegacyMaxChunk 旧版协议单帧数据上限
func WithLegacyMaxChunk(n int) Option {
	return func(c *Client) {
		c.legacyMaxChunk = n
	}
}

// WithChainID 旧版签名 v 值的网络参数
func WithChainID(id uint64) Option {
	return func(c *Client) {
		c.chainID = id
	}
}

// New 在传输通道上创建客户端
func New(t exchange.Transport, opts ...Option) *Client {
	return NewWithSequencer(exchange.NewSequencer(t), opts...)
}

// NewWithSequencer 复用已有的设备会话
func NewWithSequencer(seq *exchange.Sequencer, opts ...Option) *Client {
	c := &Client{
		seq:            seq,
		maxChunk:       apdu.MaxChunk,
		legacyMaxChunk: apdu.LegacyMaxChunk,
		chainID:        1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID 旧版签名使用的网络参数
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Pending 已发出最后一帧、等待设备返回的命令
type Pending[T any] struct {
	exchange *exchange.PendingExchange
	parse    func(data []byte) (T, error)
}

// Await 等待设备响应并解析
// ctx 结束时提前返回，设备侧的命令仍在进行
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	resp, err := p.exchange.Await(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return p.parse(resp.Data)
}

// State 底层交换的状态
func (p *Pending[T]) State() exchange.State {
	return p.exchange.State()
}

// Done 设备返回后关闭
func (p *Pending[T]) Done() <-chan struct{} {
	return p.exchange.Done()
}

func begin[T any](ctx context.Context, c *Client, cmd apdu.Command, maxChunk int, parse func([]byte) (T, error)) (*Pending[T], error) {
	frames, err := apdu.BuildCommandSequence(cmd, maxChunk)
	if err != nil {
		return nil, err
	}
	p, err := c.seq.Begin(ctx, frames)
	if err != nil {
		return nil, err
	}
	return &Pending[T]{exchange: p, parse: parse}, nil
}

// GetAppConfiguration 读取应用配置与版本
func (c *Client) GetAppConfiguration(ctx context.Context) (*response.AppConfiguration, error) {
	p, err := begin(ctx, c, apdu.Command{Ins: apdu.InsGetAppConfiguration}, c.maxChunk, response.ParseAppConfiguration)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

// BeginGetPublicKey 发送 GET_PUBLIC_KEY；confirm 时设备会在屏幕上显示地址等待确认
func (c *Client) BeginGetPublicKey(ctx context.Context, path string, confirm, chainCode bool) (*Pending[*response.PublicKey], error) {
	p, err := bip32.ParsePath(path)
	if err != nil {
		return nil, err
	}
	payload, err := apdu.PathPayload(p)
	if err != nil {
		return nil, err
	}
	cmd := apdu.Command{Ins: apdu.InsGetPublicKey, Payload: payload, Confirm: confirm, ChainCode: chainCode}
	return begin(ctx, c, cmd, c.maxChunk, response.ParsePublicKey)
}

// GetPublicKey 读取路径对应的公钥与地址
func (c *Client) GetPublicKey(ctx context.Context, path string, confirm, chainCode bool) (*response.PublicKey, error) {
	p, err := c.BeginGetPublicKey(ctx, path, confirm, chainCode)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

// BeginSignTransaction 发送交易的未签名编码，等待用户确认
func (c *Client) BeginSignTransaction(ctx context.Context, path string, tx *vettx.Transaction) (*Pending[*response.Signature], error) {
	payload, err := transactionPayload(path, tx)
	if err != nil {
		return nil, err
	}
	return begin(ctx, c, apdu.Command{Ins: apdu.InsSign, Payload: payload}, c.maxChunk, response.ParseSignature)
}

// SignTransaction 签名交易，返回 r ‖ s ‖ v
func (c *Client) SignTransaction(ctx context.Context, path string, tx *vettx.Transaction) (*response.Signature, error) {
	p, err := c.BeginSignTransaction(ctx, path, tx)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

// LegacySignTransaction 旧版协议签名: 按 legacyMaxChunk 分帧，响应为 v ‖ r ‖ s
// 返回的签名 V 保留设备给出的 2·chainID+35/36
func (c *Client) LegacySignTransaction(ctx context.Context, path string, tx *vettx.Transaction) (*response.Signature, error) {
	payload, err := transactionPayload(path, tx)
	if err != nil {
		return nil, err
	}
	parse := func(data []byte) (*response.Signature, error) {
		return response.ParseLegacySignature(data, c.chainID)
	}
	p, err := begin(ctx, c, apdu.Command{Ins: apdu.InsSign, Payload: payload}, c.legacyMaxChunk, parse)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

// BeginSignPersonalMessage 签名任意消息
func (c *Client) BeginSignPersonalMessage(ctx context.Context, path string, message []byte) (*Pending[*response.Signature], error) {
	payload, err := messagePayload(path, message)
	if err != nil {
		return nil, err
	}
	return begin(ctx, c, apdu.Command{Ins: apdu.InsSignPersonalMessage, Payload: payload}, c.maxChunk, response.ParseSignature)
}

// SignPersonalMessage 签名任意消息
func (c *Client) SignPersonalMessage(ctx context.Context, path string, message []byte) (*response.Signature, error) {
	p, err := c.BeginSignPersonalMessage(ctx, path, message)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

// BeginSignCertificate 签名证书，证书必须是一个 JSON 对象
func (c *Client) BeginSignCertificate(ctx context.Context, path string, certificate []byte) (*Pending[*response.Signature], error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(certificate, &obj); err != nil {
		return nil, errno.Wrap(errno.ErrInvalidInput, "certificate", err)
	}
	payload, err := messagePayload(path, certificate)
	if err != nil {
		return nil, err
	}
	return begin(ctx, c, apdu.Command{Ins: apdu.InsSignCertificate, Payload: payload}, c.maxChunk, response.ParseSignature)
}

// SignCertificate 签名证书
func (c *Client) SignCertificate(ctx context.Context, path string, certificate []byte) (*response.Signature, error) {
	p, err := c.BeginSignCertificate(ctx, path, certificate)
	if err != nil {
		return nil, err
	}
	return p.Await(ctx)
}

func transactionPayload(path string, tx *vettx.Transaction) ([]byte, error) {
	p, err := bip32.ParsePath(path)
	if err != nil {
		return nil, err
	}
	encoded, err := vettx.Encode(tx, vettx.Unsigned)
	if err != nil {
		return nil, err
	}
	return apdu.TransactionPayload(p, encoded)
}

func messagePayload(path string, message []byte) ([]byte, error) {
	p, err := bip32.ParsePath(path)
	if err != nil {
		return nil, err
	}
	return apdu.MessagePayload(p, message)
}
