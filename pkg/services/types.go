// Package services provides the typed command API over the daemon RPC
// connection: one thin wrapper per daemon service. Wrappers check only local
// shape preconditions; business validation happens in the daemon and surfaces
// as *rpcclient.RPCError.
package services

// Destination names for the daemon's routed services.
const (
	DestDaemon   = "daemon"
	DestWallet   = "wallet"
	DestFullNode = "full_node"
	DestFarmer   = "farmer"
)

// --- Passive view models ---
// Daemon-sourced snapshots. They are never mutated locally; the latest value
// pushed by a response or event replaces the previous one wholesale.

// WalletInfo describes one wallet known to the daemon.
type WalletInfo struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data,omitempty"`
}

// WalletBalance is the balance snapshot for one wallet. Amounts are in the
// chain's smallest unit.
type WalletBalance struct {
	WalletID                 uint32 `json:"wallet_id"`
	ConfirmedWalletBalance   uint64 `json:"confirmed_wallet_balance"`
	UnconfirmedWalletBalance uint64 `json:"unconfirmed_wallet_balance"`
	SpendableBalance         uint64 `json:"spendable_balance"`
	PendingChange            uint64 `json:"pending_change"`
	MaxSendAmount            uint64 `json:"max_send_amount"`
}

// TransactionRecord is one entry in a wallet's transaction history.
type TransactionRecord struct {
	Name              string `json:"name"`
	WalletID          uint32 `json:"wallet_id"`
	Amount            uint64 `json:"amount"`
	FeeAmount         uint64 `json:"fee_amount"`
	Confirmed         bool   `json:"confirmed"`
	ConfirmedAtHeight uint32 `json:"confirmed_at_height"`
	CreatedAtTime     int64  `json:"created_at_time"`
	ToAddress         string `json:"to_address"`
	Type              int    `json:"type"`
}

// SyncStatus reports the wallet's view of chain synchronization.
type SyncStatus struct {
	Synced             bool `json:"synced"`
	Syncing            bool `json:"syncing"`
	GenesisInitialized bool `json:"genesis_initialized"`
}

// TradeRecord describes an offer known to the wallet.
type TradeRecord struct {
	TradeID          string `json:"trade_id"`
	Status           string `json:"status"`
	CreatedAtTime    int64  `json:"created_at_time"`
	ConfirmedAtIndex uint32 `json:"confirmed_at_index"`
	IsMyOffer        bool   `json:"is_my_offer"`
}

// NetworkInfo identifies the chain the daemon is on.
type NetworkInfo struct {
	NetworkName   string `json:"network_name"`
	NetworkPrefix string `json:"network_prefix"`
}

// BlockRecord is a summary of one block in the chain.
type BlockRecord struct {
	HeaderHash string `json:"header_hash"`
	Height     uint32 `json:"height"`
	Weight     uint64 `json:"weight"`
	Timestamp  int64  `json:"timestamp"`
}

// BlockchainState is the full node's dashboard snapshot.
type BlockchainState struct {
	Peak        *BlockRecord `json:"peak"`
	Difficulty  uint64       `json:"difficulty"`
	Space       uint64       `json:"space"`
	MempoolSize int          `json:"mempool_size"`
	Sync        struct {
		Synced           bool   `json:"synced"`
		SyncMode         bool   `json:"sync_mode"`
		SyncProgressHeight uint32 `json:"sync_progress_height"`
		SyncTipHeight    uint32 `json:"sync_tip_height"`
	} `json:"sync"`
}

// ConnectionInfo describes one peer connection held by the full node.
type ConnectionInfo struct {
	NodeID         string  `json:"node_id"`
	PeerHost       string  `json:"peer_host"`
	PeerPort       uint16  `json:"peer_port"`
	Type           int     `json:"type"`
	CreationTime   float64 `json:"creation_time"`
	BytesRead      uint64  `json:"bytes_read"`
	BytesWritten   uint64  `json:"bytes_written"`
	PeakHeight     uint32  `json:"peak_height"`
}

// SignagePoint is one farming signage point with its proofs.
type SignagePoint struct {
	ChallengeHash      string   `json:"challenge_hash"`
	ChallengeChainSP   string   `json:"challenge_chain_sp"`
	RewardChainSP      string   `json:"reward_chain_sp"`
	SignagePointIndex  uint8    `json:"signage_point_index"`
	Proofs             []string `json:"proofs,omitempty"`
}

// PoolState reports pool membership status for one pool configuration.
type PoolState struct {
	PoolConfig struct {
		PoolURL    string `json:"pool_url"`
		LauncherID string `json:"launcher_id"`
	} `json:"pool_config"`
	CurrentDifficulty uint64 `json:"current_difficulty"`
	CurrentPoints     uint64 `json:"current_points"`
	PointsFound24h    int    `json:"points_found_24h"`
	PointsAcked24h    int    `json:"points_acknowledged_24h"`
}

// HarvesterSummary describes one harvester attached to the farmer.
type HarvesterSummary struct {
	NodeID    string `json:"node_id"`
	Host      string `json:"host"`
	PlotCount int    `json:"plot_count"`
}
