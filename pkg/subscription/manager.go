package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
)

// UpdateHandler is called with the freshly decoded state of a watched account.
type UpdateHandler func(address solana.PublicKey, value protocol.Account, slot uint64)

// Manager keeps farm and farmer accounts in sync over a websocket subscription.
type Manager struct {
	wsClient      *WebSocketClient
	cache         *AccountCache
	subscriptions map[solana.PublicKey]uint64
	handlers      map[solana.PublicKey]UpdateHandler
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	log           *zap.Logger
}

func NewManager(ctx context.Context, wsURL string, commitment rpc.CommitmentType, log *zap.Logger, opts ...Option) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	managerCtx, cancel := context.WithCancel(ctx)

	wsClient, err := NewWebSocketClient(managerCtx, wsURL, commitment, log, opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create WebSocket client: %w", err)
	}

	return &Manager{
		wsClient:      wsClient,
		cache:         NewAccountCache(),
		subscriptions: make(map[solana.PublicKey]uint64),
		handlers:      make(map[solana.PublicKey]UpdateHandler),
		ctx:           managerCtx,
		cancel:        cancel,
		log:           log,
	}, nil
}

// WatchFarm subscribes to the farm account. farm may be nil when not fetched yet.
func (m *Manager) WatchFarm(address solana.PublicKey, farm *gemfarm.Farm) error {
	var value protocol.Account
	if farm != nil {
		value = farm
	}
	return m.watch(address, KindFarm, value)
}

// WatchFarmer subscribes to a farmer record. farmer may be nil when not fetched yet.
func (m *Manager) WatchFarmer(address solana.PublicKey, farmer *gemfarm.Farmer) error {
	var value protocol.Account
	if farmer != nil {
		value = farmer
	}
	return m.watch(address, KindFarmer, value)
}

func (m *Manager) watch(address solana.PublicKey, kind AccountKind, value protocol.Account) error {
	m.mu.Lock()
	if _, exists := m.subscriptions[address]; exists {
		if value != nil {
			m.cache.Set(address, kind, value)
		}
		m.mu.Unlock()
		return nil
	}
	// claimed as pending (id 0) so concurrent watches of address subscribe once
	m.subscriptions[address] = 0
	m.cache.Set(address, kind, value)
	m.mu.Unlock()

	subID, err := m.wsClient.SubscribeAccount(address, m.handleAccountUpdate)
	if err != nil {
		m.mu.Lock()
		delete(m.subscriptions, address)
		m.cache.Remove(address)
		m.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s %s: %w", kind, address, err)
	}

	m.mu.Lock()
	_, stillWatched := m.subscriptions[address]
	if stillWatched {
		m.subscriptions[address] = subID
	}
	m.mu.Unlock()

	if !stillWatched {
		return m.wsClient.Unsubscribe(subID)
	}
	m.log.Debug("watching account", zap.String("kind", string(kind)), zap.Stringer("address", address), zap.Uint64("subID", subID))
	return nil
}

// Unwatch drops the subscription and cached state of address.
func (m *Manager) Unwatch(address solana.PublicKey) error {
	m.mu.Lock()
	subID, exists := m.subscriptions[address]
	delete(m.subscriptions, address)
	delete(m.handlers, address)
	m.mu.Unlock()

	m.cache.Remove(address)
	// a pending watch unsubscribes itself once its subscribe returns
	if !exists || subID == 0 {
		return nil
	}
	return m.wsClient.Unsubscribe(subID)
}

func (m *Manager) handleAccountUpdate(address solana.PublicKey, data []byte, slot uint64) {
	value, err := m.cache.Update(address, data, slot)
	if err != nil {
		m.log.Warn("failed to update cached account", zap.Stringer("address", address), zap.Error(err))
		return
	}
	if value == nil {
		return
	}

	m.mu.RLock()
	handler, exists := m.handlers[address]
	m.mu.RUnlock()
	if exists {
		handler(address, value, slot)
	}
}

// RegisterHandler sets the callback for updates of address, replacing any previous one.
func (m *Manager) RegisterHandler(address solana.PublicKey, handler UpdateHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[address] = handler
}

func (m *Manager) Farm(address solana.PublicKey) (*gemfarm.Farm, bool) {
	return m.cache.Farm(address)
}

func (m *Manager) Farmer(address solana.PublicKey) (*gemfarm.Farmer, bool) {
	return m.cache.Farmer(address)
}

func (m *Manager) Cache() *AccountCache {
	return m.cache
}

func (m *Manager) IsConnected() bool {
	return m.wsClient.IsConnected()
}

func (m *Manager) Close() error {
	m.mu.RLock()
	addresses := make([]solana.PublicKey, 0, len(m.subscriptions))
	for address := range m.subscriptions {
		addresses = append(addresses, address)
	}
	m.mu.RUnlock()

	for _, address := range addresses {
		if err := m.Unwatch(address); err != nil {
			m.log.Debug("unsubscribe failed", zap.Stringer("address", address), zap.Error(err))
		}
	}

	m.cancel()
	return m.wsClient.Close()
}

func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"subscriptions":  len(m.subscriptions),
		"cachedAccounts": m.cache.Size(),
		"connected":      m.wsClient.IsConnected(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}
}
