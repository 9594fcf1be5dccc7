package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemstake/pkg/anchor"
	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/protocol"
)

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func farmerData(t *testing.T, gems uint64) []byte {
	t.Helper()
	data, err := anchor.EncodeAccount(gemfarm.AccountFarmer, &gemfarm.Farmer{Identity: key(), GemsStaked: gems, State: gemfarm.FarmerStaked})
	require.NoError(t, err)
	return data
}

type subscribeCall struct {
	method  string
	account string
	subID   uint64
}

// pubsub is a minimal accountSubscribe endpoint. Each subscribe is answered with id+100.
type pubsub struct {
	*httptest.Server
	calls  chan subscribeCall
	mu     sync.Mutex
	conn   *websocket.Conn
	connMu sync.Mutex
}

func newPubsub(t *testing.T) *pubsub {
	t.Helper()
	p := &pubsub{calls: make(chan subscribeCall, 16)}
	upgrader := websocket.Upgrader{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.connMu.Lock()
		p.conn = conn
		p.connMu.Unlock()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     uint64            `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if json.Unmarshal(msg, &req) != nil {
				continue
			}
			call := subscribeCall{method: req.Method}
			var result interface{} = true
			if req.Method == "accountSubscribe" {
				_ = json.Unmarshal(req.Params[0], &call.account)
				call.subID = req.ID + 100
				result = call.subID
			}
			p.write(t, map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
			p.calls <- call
		}
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *pubsub) url() string {
	return "ws" + strings.TrimPrefix(p.URL, "http")
}

func (p *pubsub) write(t *testing.T, v interface{}) {
	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()
	if !assert.NotNil(t, conn) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.NoError(t, conn.WriteJSON(v))
}

// drop closes the server side of the current connection.
func (p *pubsub) drop(t *testing.T) {
	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()
	require.NotNil(t, conn)
	require.NoError(t, conn.Close())
}

func (p *pubsub) notify(t *testing.T, subID, slot uint64, data []byte) {
	p.write(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "accountNotification",
		"params": map[string]interface{}{
			"subscription": subID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": slot},
				"value": map[string]interface{}{
					"data":     []string{base64.StdEncoding.EncodeToString(data), "base64"},
					"lamports": 1,
					"owner":    gemfarm.ProgramID.String(),
				},
			},
		},
	})
}

func (p *pubsub) next(t *testing.T) subscribeCall {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription call received")
		return subscribeCall{}
	}
}

type update struct {
	value protocol.Account
	slot  uint64
}

func TestManagerFarmerUpdates(t *testing.T) {
	ps := newPubsub(t)
	mgr, err := NewManager(context.Background(), ps.url(), "", nil)
	require.NoError(t, err)
	defer mgr.Close()

	address := key()
	updates := make(chan update, 4)
	mgr.RegisterHandler(address, func(_ solana.PublicKey, value protocol.Account, slot uint64) {
		updates <- update{value: value, slot: slot}
	})

	require.NoError(t, mgr.WatchFarmer(address, nil))
	call := ps.next(t)
	assert.Equal(t, "accountSubscribe", call.method)
	assert.Equal(t, address.String(), call.account)

	_, cached := mgr.Farmer(address)
	assert.False(t, cached, "nothing decoded yet")

	ps.notify(t, call.subID, 10, farmerData(t, 2))
	select {
	case u := <-updates:
		assert.Equal(t, uint64(10), u.slot)
		farmer, ok := u.value.(*gemfarm.Farmer)
		require.True(t, ok)
		assert.Equal(t, uint64(2), farmer.GemsStaked)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}

	// older slot and garbage are dropped; the next valid update comes through
	ps.notify(t, call.subID, 5, farmerData(t, 9))
	ps.notify(t, call.subID, 12, []byte{1, 2, 3})
	ps.notify(t, call.subID, 11, farmerData(t, 3))
	select {
	case u := <-updates:
		assert.Equal(t, uint64(11), u.slot)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}

	farmer, ok := mgr.Farmer(address)
	require.True(t, ok)
	assert.Equal(t, uint64(3), farmer.GemsStaked)
	assert.Equal(t, 1, mgr.Stats()["subscriptions"])
	assert.True(t, mgr.IsConnected())

	require.NoError(t, mgr.Unwatch(address))
	assert.Equal(t, "accountUnsubscribe", ps.next(t).method)
	_, ok = mgr.Farmer(address)
	assert.False(t, ok)
}

func TestManagerWatchFarmTwice(t *testing.T) {
	ps := newPubsub(t)
	mgr, err := NewManager(context.Background(), ps.url(), "", nil)
	require.NoError(t, err)
	defer mgr.Close()

	address := key()
	require.NoError(t, mgr.WatchFarm(address, &gemfarm.Farm{FarmerCount: 1}))
	ps.next(t)
	require.NoError(t, mgr.WatchFarm(address, &gemfarm.Farm{FarmerCount: 2}))

	farm, ok := mgr.Farm(address)
	require.True(t, ok)
	assert.Equal(t, uint64(2), farm.FarmerCount)
	assert.Equal(t, 1, mgr.Stats()["subscriptions"])
}

func TestAccountCache(t *testing.T) {
	cache := NewAccountCache()
	farmAddr, farmerAddr := key(), key()

	_, err := cache.Update(farmerAddr, farmerData(t, 1), 1)
	assert.Error(t, err, "unknown address")

	cache.Set(farmAddr, KindFarm, &gemfarm.Farm{Version: 1})
	cache.Set(farmerAddr, KindFarmer, nil)
	assert.Equal(t, 2, cache.Size())

	_, err = cache.Update(farmAddr, farmerData(t, 1), 1)
	assert.ErrorIs(t, err, anchor.ErrDiscriminatorMismatch)

	value, err := cache.Update(farmerAddr, farmerData(t, 4), 7)
	require.NoError(t, err)
	require.NotNil(t, value)

	farmers := cache.Farmers()
	require.Len(t, farmers, 1)
	assert.Equal(t, uint64(4), farmers[farmerAddr].GemsStaked)

	entry, ok := cache.Get(farmerAddr)
	require.True(t, ok)
	assert.Equal(t, uint64(7), entry.LastSlot)
	assert.Equal(t, KindFarmer, entry.Kind)

	value, err = cache.Update(farmerAddr, farmerData(t, 5), 6)
	require.NoError(t, err)
	assert.Nil(t, value)

	assert.Empty(t, cache.StaleAddresses(time.Hour))
	assert.Len(t, cache.StaleAddresses(-time.Second), 2)

	cache.Remove(farmAddr)
	_, ok = cache.Farm(farmAddr)
	assert.False(t, ok)
	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestWebSocketReconnectResubscribes(t *testing.T) {
	ps := newPubsub(t)
	client, err := NewWebSocketClient(context.Background(), ps.url(), "", nil, WithReconnectDelay(20*time.Millisecond))
	require.NoError(t, err)
	defer client.Close()

	account := key()
	received := make(chan uint64, 4)
	_, err = client.SubscribeAccount(account, func(got solana.PublicKey, _ []byte, slot uint64) {
		assert.Equal(t, account, got)
		received <- slot
	})
	require.NoError(t, err)
	first := ps.next(t)
	require.Equal(t, "accountSubscribe", first.method)

	ps.drop(t)

	second := ps.next(t)
	assert.Equal(t, "accountSubscribe", second.method)
	assert.Equal(t, account.String(), second.account)
	assert.True(t, client.IsConnected())

	ps.notify(t, second.subID, 42, farmerData(t, 1))
	select {
	case slot := <-received:
		assert.Equal(t, uint64(42), slot)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after reconnect")
	}
}

func TestManagerConcurrentWatchSubscribesOnce(t *testing.T) {
	ps := newPubsub(t)
	mgr, err := NewManager(context.Background(), ps.url(), "", nil)
	require.NoError(t, err)
	defer mgr.Close()

	address := key()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.WatchFarm(address, nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, "accountSubscribe", ps.next(t).method)
	select {
	case call := <-ps.calls:
		t.Fatalf("unexpected second call %s", call.method)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, mgr.Stats()["subscriptions"])

	// unwatching another address leaves the first subscription alone
	other := key()
	require.NoError(t, mgr.WatchFarmer(other, nil))
	ps.next(t)
	require.NoError(t, mgr.Unwatch(other))
	assert.Equal(t, 1, mgr.Stats()["subscriptions"])
}
