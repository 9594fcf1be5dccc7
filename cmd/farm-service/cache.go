package main

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
	"gemstake/pkg/staking"
	"gemstake/pkg/subscription"
)

type CachedFarmer struct {
	Info       *staking.FarmerInfo
	LastUpdate time.Time
	Slot       uint64
}

// FarmerCache keeps the farm's farmers keyed by identity. It is filled by a
// periodic getProgramAccounts sweep and kept fresh by account notifications.
type FarmerCache struct {
	farmers         map[solana.PublicKey]*CachedFarmer
	mu              sync.RWMutex
	svc             *staking.Service
	subscriptionMgr *subscription.Manager
	refreshInterval time.Duration
	useWebSocket    bool
	log             *zap.SugaredLogger
}

// NewFarmerCache builds the cache. mgr may be nil, in which case only the periodic refresh runs.
func NewFarmerCache(svc *staking.Service, mgr *subscription.Manager, refreshInterval time.Duration, log *zap.Logger) *FarmerCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &FarmerCache{
		farmers:         make(map[solana.PublicKey]*CachedFarmer),
		svc:             svc,
		subscriptionMgr: mgr,
		refreshInterval: refreshInterval,
		useWebSocket:    mgr != nil,
		log:             log.Sugar(),
	}
}

func (fc *FarmerCache) Get(identity solana.PublicKey) (*CachedFarmer, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	cached, exists := fc.farmers[identity]
	return cached, exists
}

// GetOrFetch serves identity from the cache, reading it from chain on a miss.
// It returns nil without error when the identity has no farmer.
func (fc *FarmerCache) GetOrFetch(ctx context.Context, identity solana.PublicKey) (*CachedFarmer, bool, error) {
	if cached, exists := fc.Get(identity); exists {
		return cached, true, nil
	}

	info, err := fc.svc.FetchFarmer(ctx, identity)
	if err != nil || info == nil {
		return nil, false, err
	}
	return fc.store(info, 0), false, nil
}

// Farm returns the farm from the subscription cache when it is live, otherwise from chain.
func (fc *FarmerCache) Farm(ctx context.Context) (*gemfarm.Farm, error) {
	if fc.useWebSocket {
		if farm, ok := fc.subscriptionMgr.Farm(fc.svc.FarmID); ok {
			return farm, nil
		}
	}
	farm, err := fc.svc.FetchFarm(ctx)
	if err != nil {
		return nil, err
	}
	if fc.useWebSocket {
		if err := fc.subscriptionMgr.WatchFarm(fc.svc.FarmID, farm); err != nil {
			fc.log.Warnf("Failed to watch farm %s: %v", fc.svc.FarmID, err)
		}
	}
	return farm, nil
}

func (fc *FarmerCache) store(info *staking.FarmerInfo, slot uint64) *CachedFarmer {
	cached := &CachedFarmer{Info: info, LastUpdate: time.Now(), Slot: slot}

	fc.mu.Lock()
	_, known := fc.farmers[info.Identity]
	fc.farmers[info.Identity] = cached
	fc.mu.Unlock()

	if !known && fc.useWebSocket {
		if err := fc.subscriptionMgr.WatchFarmer(info.Address, info.Account); err != nil {
			fc.log.Warnf("Failed to watch farmer %s: %v", info.Address, err)
		} else {
			fc.subscriptionMgr.RegisterHandler(info.Address, fc.handleFarmerUpdate)
		}
	}
	return cached
}

// handleFarmerUpdate is called when a watched farmer record changes on chain.
func (fc *FarmerCache) handleFarmerUpdate(address solana.PublicKey, value protocol.Account, slot uint64) {
	farmer, ok := value.(*gemfarm.Farmer)
	if !ok {
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if old, exists := fc.farmers[farmer.Identity]; exists && old.Slot > slot {
		return
	}
	fc.farmers[farmer.Identity] = &CachedFarmer{
		Info: &staking.FarmerInfo{
			Identity: farmer.Identity,
			Address:  address,
			Account:  farmer,
			State:    farmer.State,
		},
		LastUpdate: time.Now(),
		Slot:       slot,
	}
	fc.log.Debugf("Farmer %s updated (slot %d): state=%s gems=%d", farmer.Identity, slot, farmer.State, farmer.GemsStaked)
}

// RefreshAll replaces the cache with every farmer of the farm.
func (fc *FarmerCache) RefreshAll(ctx context.Context) error {
	startTime := time.Now()
	farmID := fc.svc.FarmID
	farmers, err := fc.svc.Farm.FetchAllFarmers(ctx, &farmID, nil)
	if err != nil {
		return err
	}

	for i := range farmers {
		farmer := &farmers[i].Account
		fc.store(&staking.FarmerInfo{
			Identity: farmer.Identity,
			Address:  farmers[i].Address,
			Account:  farmer,
			State:    farmer.State,
		}, 0)
	}
	fc.log.Infof("Refreshed %d farmers (took %s)", len(farmers), time.Since(startTime).Round(time.Millisecond))
	return nil
}

func (fc *FarmerCache) StartPeriodicRefresh(ctx context.Context) {
	fc.log.Infof("Starting initial farmer refresh...")
	if err := fc.RefreshAll(ctx); err != nil {
		fc.log.Warnf("Initial refresh failed: %v", err)
	}

	// notifications keep watched farmers current, so the sweep only needs to find new ones
	interval := fc.refreshInterval
	if fc.useWebSocket {
		interval *= 10
	}
	fc.log.Infof("Using %v refresh interval (websocket: %t)", interval, fc.useWebSocket)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fc.log.Infof("Stopping periodic refresh")
			return
		case <-ticker.C:
			if err := fc.RefreshAll(ctx); err != nil {
				fc.log.Warnf("Periodic refresh failed: %v", err)
			}
		}
	}
}

func (fc *FarmerCache) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.farmers)
}

func (fc *FarmerCache) LastUpdate() time.Time {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	var last time.Time
	for _, cached := range fc.farmers {
		if cached.LastUpdate.After(last) {
			last = cached.LastUpdate
		}
	}
	return last
}

func (fc *FarmerCache) WebSocketConnected() bool {
	return fc.useWebSocket && fc.subscriptionMgr.IsConnected()
}
