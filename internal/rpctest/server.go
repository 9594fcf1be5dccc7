// Package rpctest serves a minimal in-memory Solana JSON-RPC endpoint for tests.
package rpctest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
)

type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Server answers the read and submit methods used by this module.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[solana.PublicKey]Account
	calls     map[string]int
	sent      []*solana.Transaction
	Blockhash solana.Hash
	// TxError, when set, is reported as the on-chain error of every submitted transaction.
	TxError interface{}
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		accounts:  make(map[solana.PublicKey]Account),
		calls:     make(map[string]int),
		Blockhash: solana.HashFromBytes(bytes.Repeat([]byte{7}, 32)),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) SetAccount(address, owner solana.PublicKey, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[address]
	acc.Owner = owner
	acc.Data = data
	if acc.Lamports == 0 {
		acc.Lamports = 1_000_000
	}
	s.accounts[address] = acc
}

func (s *Server) SetBalance(address solana.PublicKey, lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[address]
	acc.Lamports = lamports
	if acc.Owner.IsZero() {
		acc.Owner = solana.SystemProgramID
	}
	s.accounts[address] = acc
}

func (s *Server) DeleteAccount(address solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, address)
}

// Calls returns how many times method was requested.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Sent returns the transactions received through sendTransaction.
func (s *Server) Sent() []*solana.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*solana.Transaction(nil), s.sent...)
}

type request struct {
	ID     interface{}       `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type filterParams struct {
	Filters []struct {
		Memcmp *struct {
			Offset uint64        `json:"offset"`
			Bytes  solana.Base58 `json:"bytes"`
		} `json:"memcmp"`
		DataSize uint64 `json:"dataSize"`
	} `json:"filters"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	result, rpcErr := s.dispatch(req)
	s.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != "" {
		resp["error"] = map[string]interface{}{"code": -32602, "message": rpcErr}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 100},
		"value":   value,
	}
}

func (s *Server) accountJSON(acc Account) map[string]interface{} {
	return map[string]interface{}{
		"data":       []string{base64.StdEncoding.EncodeToString(acc.Data), "base64"},
		"executable": false,
		"lamports":   acc.Lamports,
		"owner":      acc.Owner.String(),
		"rentEpoch":  0,
		"space":      len(acc.Data),
	}
}

func (s *Server) lookup(raw json.RawMessage) (map[string]interface{}, bool) {
	var key solana.PublicKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, false
	}
	acc, ok := s.accounts[key]
	if !ok {
		return nil, false
	}
	return s.accountJSON(acc), true
}

func (s *Server) dispatch(req request) (interface{}, string) {
	switch req.Method {
	case "getAccountInfo":
		if acc, ok := s.lookup(req.Params[0]); ok {
			return withContext(acc), ""
		}
		return withContext(nil), ""

	case "getMultipleAccounts":
		var keys []json.RawMessage
		if err := json.Unmarshal(req.Params[0], &keys); err != nil {
			return nil, err.Error()
		}
		values := make([]interface{}, len(keys))
		for i, k := range keys {
			if acc, ok := s.lookup(k); ok {
				values[i] = acc
			}
		}
		return withContext(values), ""

	case "getProgramAccounts":
		var program solana.PublicKey
		if err := json.Unmarshal(req.Params[0], &program); err != nil {
			return nil, err.Error()
		}
		var opts filterParams
		if len(req.Params) > 1 {
			if err := json.Unmarshal(req.Params[1], &opts); err != nil {
				return nil, err.Error()
			}
		}
		out := []interface{}{}
		for key, acc := range s.accounts {
			if !acc.Owner.Equals(program) || !matches(acc.Data, opts) {
				continue
			}
			out = append(out, map[string]interface{}{
				"pubkey":  key.String(),
				"account": s.accountJSON(acc),
			})
		}
		return out, ""

	case "getBalance":
		var key solana.PublicKey
		if err := json.Unmarshal(req.Params[0], &key); err != nil {
			return nil, err.Error()
		}
		return withContext(s.accounts[key].Lamports), ""

	case "getTokenAccountsByOwner":
		var owner solana.PublicKey
		if err := json.Unmarshal(req.Params[0], &owner); err != nil {
			return nil, err.Error()
		}
		out := []interface{}{}
		for key, acc := range s.accounts {
			if !acc.Owner.Equals(solana.TokenProgramID) || len(acc.Data) < 64 {
				continue
			}
			if !bytes.Equal(acc.Data[32:64], owner.Bytes()) {
				continue
			}
			out = append(out, map[string]interface{}{
				"pubkey":  key.String(),
				"account": s.accountJSON(acc),
			})
		}
		return withContext(out), ""

	case "getLatestBlockhash":
		return withContext(map[string]interface{}{
			"blockhash":            s.Blockhash.String(),
			"lastValidBlockHeight": 1000,
		}), ""

	case "sendTransaction":
		var encoded string
		if err := json.Unmarshal(req.Params[0], &encoded); err != nil {
			return nil, err.Error()
		}
		tx, err := solana.TransactionFromBase64(encoded)
		if err != nil {
			return nil, err.Error()
		}
		s.sent = append(s.sent, tx)
		return tx.Signatures[0].String(), ""

	case "getSignatureStatuses":
		return withContext([]interface{}{map[string]interface{}{
			"slot":               100,
			"confirmations":      nil,
			"err":                s.TxError,
			"confirmationStatus": "confirmed",
		}}), ""
	}
	return nil, "method not supported: " + req.Method
}

func matches(data []byte, opts filterParams) bool {
	for _, f := range opts.Filters {
		if f.DataSize != 0 && uint64(len(data)) != f.DataSize {
			return false
		}
		if f.Memcmp == nil {
			continue
		}
		end := f.Memcmp.Offset + uint64(len(f.Memcmp.Bytes))
		if end > uint64(len(data)) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}
