package subscription

import (
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
)

type AccountKind string

const (
	KindFarm   AccountKind = "farm"
	KindFarmer AccountKind = "farmer"
)

func newAccount(kind AccountKind) (protocol.Account, error) {
	switch kind {
	case KindFarm:
		return new(gemfarm.Farm), nil
	case KindFarmer:
		return new(gemfarm.Farmer), nil
	}
	return nil, fmt.Errorf("unknown account kind %q", kind)
}

// CacheEntry is the latest decoded state of a watched account.
type CacheEntry struct {
	Address    solana.PublicKey
	Kind       AccountKind
	Value      protocol.Account
	Raw        []byte
	LastUpdate time.Time
	LastSlot   uint64
}

// AccountCache holds decoded farm and farmer state keyed by address.
// Values are replaced on update, never mutated, so readers may keep them.
type AccountCache struct {
	entries map[solana.PublicKey]*CacheEntry
	mu      sync.RWMutex
}

func NewAccountCache() *AccountCache {
	return &AccountCache{
		entries: make(map[solana.PublicKey]*CacheEntry),
	}
}

// Set stores value for address. A nil value only registers the kind.
func (c *AccountCache) Set(address solana.PublicKey, kind AccountKind, value protocol.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[address]; exists {
		entry.Kind = kind
		entry.Value = value
		entry.LastUpdate = time.Now()
		return
	}
	c.entries[address] = &CacheEntry{
		Address:    address,
		Kind:       kind,
		Value:      value,
		LastUpdate: time.Now(),
	}
}

func (c *AccountCache) Get(address solana.PublicKey) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[address]
	if !exists {
		return CacheEntry{}, false
	}
	return *entry, true
}

func (c *AccountCache) Farm(address solana.PublicKey) (*gemfarm.Farm, bool) {
	entry, ok := c.Get(address)
	if !ok {
		return nil, false
	}
	farm, ok := entry.Value.(*gemfarm.Farm)
	return farm, ok
}

func (c *AccountCache) Farmer(address solana.PublicKey) (*gemfarm.Farmer, bool) {
	entry, ok := c.Get(address)
	if !ok {
		return nil, false
	}
	farmer, ok := entry.Value.(*gemfarm.Farmer)
	return farmer, ok
}

// Farmers returns every cached farmer keyed by its record address.
func (c *AccountCache) Farmers() map[solana.PublicKey]*gemfarm.Farmer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[solana.PublicKey]*gemfarm.Farmer)
	for addr, entry := range c.entries {
		if farmer, ok := entry.Value.(*gemfarm.Farmer); ok {
			out[addr] = farmer
		}
	}
	return out
}

// Update decodes data as the entry's kind and replaces its value. Updates from
// a slot older than the cached one are ignored and return a nil value.
func (c *AccountCache) Update(address solana.PublicKey, data []byte, slot uint64) (protocol.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[address]
	if !exists {
		return nil, fmt.Errorf("account %s not found in cache", address)
	}
	if slot < entry.LastSlot {
		return nil, nil
	}

	value, err := newAccount(entry.Kind)
	if err != nil {
		return nil, err
	}
	if err := value.Decode(data); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", entry.Kind, address, err)
	}

	entry.Value = value
	entry.Raw = data
	entry.LastUpdate = time.Now()
	entry.LastSlot = slot
	return value, nil
}

func (c *AccountCache) Remove(address solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}

func (c *AccountCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *AccountCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[solana.PublicKey]*CacheEntry)
}

// StaleAddresses returns accounts not updated within maxAge.
func (c *AccountCache) StaleAddresses(maxAge time.Duration) []solana.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	stale := make([]solana.PublicKey, 0)
	for addr, entry := range c.entries {
		if now.Sub(entry.LastUpdate) > maxAge {
			stale = append(stale, addr)
		}
	}
	return stale
}
