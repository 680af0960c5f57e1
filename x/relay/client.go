package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrProofNotReady means the relay has not yet produced a proof for the
// message. The polling fallback treats it as retryable.
var ErrProofNotReady = errors.New("proof not available yet")

// DeliveryProof attests that the relay observed a message and it is safe to
// deliver. Timestamp is best-effort and zero on the fallback path.
type DeliveryProof struct {
	Proof     []byte
	Timestamp uint64
}

// ProofRequest identifies one message awaiting delivery.
type ProofRequest struct {
	MessageHash common.Hash
	// ChainSelector is the origin chain's messaging-protocol selector.
	ChainSelector uint64
	// FromTimestampMillis is the source block timestamp in milliseconds. The
	// relay ignores confirmations older than this bound.
	FromTimestampMillis uint64
}

// Conn is the message-oriented connection the client speaks over. Satisfied
// by *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

// DialFunc opens a connection to a relay endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Conn, error)

func defaultDial(ctx context.Context, endpoint string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", endpoint, err)
	}
	return conn, nil
}

type rpcRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type confirmationParams struct {
	MessageHash   string `json:"messageHash"`
	ChainSelector uint64 `json:"chainSelector"`
	FromTimestamp uint64 `json:"fromTimestamp"`
	ListenTimeout uint64 `json:"listenTimeout"`
}

type proofParams struct {
	MessageHash   string `json:"messageHash"`
	ChainSelector uint64 `json:"chainSelector"`
}

type routerParams struct {
	ChainSelector uint64 `json:"chainSelector"`
}

type proofPayload struct {
	Proof     string  `json:"proof"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

// Client obtains delivery proofs from the relay network over two WebSocket
// endpoints: live for confirmation waits, archive for point-in-time queries.
type Client struct {
	cfg     Config
	dial    DialFunc
	log     zerolog.Logger
	metrics *Metrics
	nextID  atomic.Uint64
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithDialFunc replaces the WebSocket dialer. Used by tests.
func WithDialFunc(dial DialFunc) ClientOption {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithMetrics attaches proof-request metrics.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a relay client. Both endpoints are required.
func NewClient(cfg Config, logger zerolog.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	c := &Client{
		cfg:  cfg,
		dial: defaultDial,
		log:  logger.With().Str("component", "relay_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetConfirmationTime performs the primary bounded confirmation wait on the
// live endpoint. The relay holds the request open for the configured listen
// timeout and answers with the proof and its confirmation timestamp.
func (c *Client) GetConfirmationTime(ctx context.Context, req ProofRequest) (*DeliveryProof, error) {
	var payload proofPayload
	err := c.call(ctx, c.cfg.LiveEndpoint, "getConfirmationTime", confirmationParams{
		MessageHash:   req.MessageHash.Hex(),
		ChainSelector: req.ChainSelector,
		FromTimestamp: req.FromTimestampMillis,
		ListenTimeout: c.cfg.ListenTimeout,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return decodeProof(payload)
}

// GetProof queries the archive endpoint for an already-confirmed proof.
// Returns ErrProofNotReady when the relay has none yet.
func (c *Client) GetProof(ctx context.Context, messageHash common.Hash, chainSelector uint64) (*DeliveryProof, error) {
	var payload proofPayload
	err := c.call(ctx, c.cfg.ArchiveEndpoint, "getProof", proofParams{
		MessageHash:   messageHash.Hex(),
		ChainSelector: chainSelector,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return decodeProof(payload)
}

// RouterAddress resolves the messaging router contract deployed on the chain
// with the given selector.
func (c *Client) RouterAddress(ctx context.Context, chainSelector uint64) (common.Address, error) {
	var hex string
	err := c.call(ctx, c.cfg.ArchiveEndpoint, "getRouter", routerParams{ChainSelector: chainSelector}, &hex)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("relay returned invalid router address %q", hex)
	}
	return common.HexToAddress(hex), nil
}

// WaitForProof obtains a delivery proof for the message: first the bounded
// confirmation wait, then the polling fallback. The fallback is bounded by
// MaxPollWait unless that is zero, in which case only ctx limits it.
func (c *Client) WaitForProof(ctx context.Context, req ProofRequest) (*DeliveryProof, error) {
	proof, err := c.GetConfirmationTime(ctx, req)
	if err == nil {
		c.count("primary", "success")
		return proof, nil
	}
	if ctx.Err() != nil {
		c.count("primary", "canceled")
		return nil, err
	}
	c.count("primary", "failure")
	c.log.Warn().
		Err(err).
		Str("message_hash", req.MessageHash.Hex()).
		Uint64("chain_selector", req.ChainSelector).
		Msg("confirmation wait failed, falling back to proof polling")

	pollCtx := ctx
	if c.cfg.MaxPollWait > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, c.cfg.MaxPollWait)
		defer cancel()
	}

	var polled *DeliveryProof
	err = retry.Do(
		func() error {
			p, perr := c.GetProof(pollCtx, req.MessageHash, req.ChainSelector)
			if perr != nil {
				return perr
			}
			polled = p
			return nil
		},
		retry.Context(pollCtx),
		retry.Attempts(0),
		retry.Delay(c.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.count("fallback", "failure")
		return nil, fmt.Errorf("proof polling for %s: %w", req.MessageHash.Hex(), err)
	}
	c.count("fallback", "success")
	return polled, nil
}

func (c *Client) call(ctx context.Context, endpoint, method string, params, result interface{}) error {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	id := c.nextID.Add(1)
	if err := conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("relay %s request: %w", method, err)
	}

	var resp rpcResponse
	for {
		if err := conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("relay %s response: %w", method, err)
		}
		if resp.ID == id {
			break
		}
	}
	if resp.Error != nil {
		return fmt.Errorf("relay %s failed: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return ErrProofNotReady
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("relay %s result: %w", method, err)
	}
	return nil
}

func (c *Client) count(path, outcome string) {
	if c.metrics != nil {
		c.metrics.ProofRequests.WithLabelValues(path, outcome).Inc()
	}
}

func decodeProof(payload proofPayload) (*DeliveryProof, error) {
	if payload.Proof == "" || payload.Proof == "0x" {
		return nil, ErrProofNotReady
	}
	raw, err := hexutil.Decode(payload.Proof)
	if err != nil {
		return nil, fmt.Errorf("relay returned malformed proof: %w", err)
	}
	proof := &DeliveryProof{Proof: raw}
	if payload.Timestamp != nil {
		proof.Timestamp = *payload.Timestamp
	}
	return proof, nil
}
