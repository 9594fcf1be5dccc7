package sol

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ClientProvider hands out the client for the next request. Both *Client and
// *RPCPool implement it.
type ClientProvider interface {
	GetClient() *Client
}

// RPCPool spreads requests across several endpoints in round-robin order.
type RPCPool struct {
	clients []*Client
	index   uint64
}

// NewRPCPool creates one client per endpoint, all sharing the same options.
func NewRPCPool(ctx context.Context, endpoints []string, jitoRpc string, reqLimitPerSecond int, opts ...Option) (*RPCPool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("rpc pool needs at least one endpoint")
	}

	pool := &RPCPool{
		clients: make([]*Client, 0, len(endpoints)),
	}
	for _, endpoint := range endpoints {
		client, err := NewClient(ctx, endpoint, jitoRpc, reqLimitPerSecond, opts...)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", endpoint, err)
		}
		pool.clients = append(pool.clients, client)
	}

	return pool, nil
}

// GetClient returns the next client.
func (p *RPCPool) GetClient() *Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}
	idx := atomic.AddUint64(&p.index, 1) % uint64(len(p.clients))
	return p.clients[idx]
}

func (p *RPCPool) GetAllClients() []*Client {
	return p.clients
}

func (p *RPCPool) Size() int {
	return len(p.clients)
}
