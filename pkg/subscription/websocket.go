package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketClient manages the pubsub connection to a Solana node.
type WebSocketClient struct {
	url            string
	commitment     rpc.CommitmentType
	conn           *websocket.Conn
	mu             sync.RWMutex
	writeMu        sync.Mutex
	subscriptions  map[uint64]*Subscription
	nextID         uint64
	reconnectDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	connected      bool
	log            *zap.Logger
}

// Subscription is one accountSubscribe request. SubID is assigned by the node.
type Subscription struct {
	ID      uint64
	Account solana.PublicKey
	SubID   uint64
	handler AccountUpdateHandler
}

// AccountUpdateHandler receives decoded account data.
type AccountUpdateHandler func(account solana.PublicKey, data []byte, slot uint64)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notificationMessage struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  notificationParams `json:"params"`
}

type notificationParams struct {
	Result       accountNotification `json:"result"`
	Subscription uint64              `json:"subscription"`
}

type accountNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Data     []string `json:"data"` // [payload, encoding]
		Lamports uint64   `json:"lamports"`
		Owner    string   `json:"owner"`
	} `json:"value"`
}

// Option configures a WebSocketClient before it connects.
type Option func(*WebSocketClient)

// WithReconnectDelay sets how often a dropped connection is redialed. The default is 5s.
func WithReconnectDelay(delay time.Duration) Option {
	return func(c *WebSocketClient) {
		if delay > 0 {
			c.reconnectDelay = delay
		}
	}
}

// NewWebSocketClient dials wsURL and starts the reader and reconnect loops.
func NewWebSocketClient(ctx context.Context, wsURL string, commitment rpc.CommitmentType, log *zap.Logger, opts ...Option) (*WebSocketClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	clientCtx, cancel := context.WithCancel(ctx)

	client := &WebSocketClient{
		url:            wsURL,
		commitment:     commitment,
		subscriptions:  make(map[uint64]*Subscription),
		reconnectDelay: 5 * time.Second,
		ctx:            clientCtx,
		cancel:         cancel,
		nextID:         1,
		log:            log.With(zap.String("ws", wsURL)),
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := client.connect(); err != nil {
		cancel()
		return nil, err
	}

	go client.readMessages()
	go client.handleReconnection()

	return client, nil
}

func (c *WebSocketClient) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Info("websocket connected")
	return nil
}

func (c *WebSocketClient) subscribeRequest(sub *Subscription) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      sub.ID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			sub.Account.String(),
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": string(c.commitment),
			},
		},
	}
}

// SubscribeAccount registers handler for updates of account and returns the local subscription id.
func (c *WebSocketClient) SubscribeAccount(account solana.PublicKey, handler AccountUpdateHandler) (uint64, error) {
	c.mu.Lock()
	sub := &Subscription{ID: c.nextID, Account: account, handler: handler}
	c.nextID++
	c.subscriptions[sub.ID] = sub
	c.mu.Unlock()

	if err := c.sendRequest(c.subscribeRequest(sub)); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, sub.ID)
		c.mu.Unlock()
		return 0, err
	}
	return sub.ID, nil
}

// Unsubscribe removes a subscription by its local id.
func (c *WebSocketClient) Unsubscribe(id uint64) error {
	c.mu.Lock()
	sub, exists := c.subscriptions[id]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("subscription not found: %d", id)
	}
	delete(c.subscriptions, id)
	nodeSubID := sub.SubID
	c.mu.Unlock()

	// not yet confirmed by the node
	if nodeSubID == 0 {
		return nil
	}

	return c.sendRequest(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountUnsubscribe",
		Params:  []interface{}{nodeSubID},
	})
}

func (c *WebSocketClient) sendRequest(req rpcRequest) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("not connected")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) readMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			continue
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var notification notificationMessage
	if err := json.Unmarshal(data, &notification); err == nil && notification.Method == "accountNotification" {
		c.handleAccountNotification(notification)
		return
	}

	var response rpcResponse
	if err := json.Unmarshal(data, &response); err != nil {
		c.log.Debug("unparsable websocket message", zap.Error(err))
		return
	}
	c.handleResponse(response)
}

func (c *WebSocketClient) handleResponse(response rpcResponse) {
	if response.Error != nil {
		c.log.Warn("websocket rpc error", zap.Uint64("id", response.ID), zap.String("message", response.Error.Message))
		return
	}

	// accountUnsubscribe answers with a bool, which is ignored here
	var nodeSubID uint64
	if err := json.Unmarshal(response.Result, &nodeSubID); err != nil {
		return
	}

	c.mu.Lock()
	if sub, exists := c.subscriptions[response.ID]; exists {
		sub.SubID = nodeSubID
	}
	c.mu.Unlock()
}

func (c *WebSocketClient) handleAccountNotification(notification notificationMessage) {
	c.mu.RLock()
	var sub *Subscription
	for _, s := range c.subscriptions {
		if s.SubID != 0 && s.SubID == notification.Params.Subscription {
			sub = s
			break
		}
	}
	c.mu.RUnlock()

	if sub == nil || sub.handler == nil {
		return
	}

	value := notification.Params.Result.Value
	if len(value.Data) < 1 {
		return
	}
	data, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		c.log.Warn("failed to decode account data", zap.Stringer("account", sub.Account), zap.Error(err))
		return
	}

	sub.handler(sub.Account, data, notification.Params.Result.Context.Slot)
}

func (c *WebSocketClient) handleReconnection() {
	ticker := time.NewTicker(c.reconnectDelay)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.IsConnected() {
				continue
			}
			c.log.Info("attempting websocket reconnect")
			if err := c.reconnect(); err != nil {
				c.log.Warn("websocket reconnect failed", zap.Error(err))
			}
		}
	}
}

// reconnect dials again and replays every subscription. Node ids are reset until confirmed.
func (c *WebSocketClient) reconnect() error {
	if err := c.connect(); err != nil {
		return err
	}

	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		sub.SubID = 0
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if err := c.sendRequest(c.subscribeRequest(sub)); err != nil {
			c.log.Warn("failed to resubscribe", zap.Stringer("account", sub.Account), zap.Error(err))
		}
	}
	c.log.Info("websocket resubscribed", zap.Int("subscriptions", len(subs)))
	return nil
}

func (c *WebSocketClient) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *WebSocketClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
