package main

import (
	"time"

	"gemstake/pkg/nft"
	"gemstake/pkg/program/gemfarm"
	"gemstake/pkg/staking"
)

type FarmResponse struct {
	Address  string        `json:"address"`
	Farm     *gemfarm.Farm `json:"farm"`
	Treasury uint64        `json:"treasuryLamports"`
}

type FarmerResponse struct {
	*staking.FarmerInfo
	Cached     bool      `json:"cached"`
	LastUpdate time.Time `json:"lastUpdate"`
	Slot       uint64    `json:"slot,omitempty"`
}

type RewardsResponse struct {
	Identity string `json:"identity"`
	RewardA  string `json:"rewardA"`
	RewardB  string `json:"rewardB"`
}

type NFTsResponse struct {
	Owner string    `json:"owner"`
	Count int       `json:"count"`
	NFTs  []nft.NFT `json:"nfts"`
}

// TxRequest names the wallet that will sign and the NFT to move.
// Mint and TokenAccount are only read by the stake and unstake routes.
type TxRequest struct {
	Owner        string `json:"owner"`
	Mint         string `json:"mint,omitempty"`
	TokenAccount string `json:"tokenAccount,omitempty"`
	Creator      string `json:"creator,omitempty"`
}

type TxResponse struct {
	Transaction  string   `json:"transaction"`
	Instructions []string `json:"instructions"`
	FeePayer     string   `json:"feePayer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string    `json:"status"`
	LastUpdate    time.Time `json:"lastUpdate"`
	CachedFarmers int       `json:"cachedFarmers"`
	WebSocket     bool      `json:"webSocket"`
	Uptime        string    `json:"uptime"`
}
