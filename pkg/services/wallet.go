package services

import (
	"context"
	"fmt"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
)

// WalletService issues commands to the daemon's wallet service.
type WalletService struct {
	c *rpcclient.Client
}

// NewWallet returns a wallet command API bound to the given connection.
func NewWallet(c *rpcclient.Client) *WalletService {
	return &WalletService{c: c}
}

// GetWallets lists every wallet the daemon currently manages.
func (s *WalletService) GetWallets(ctx context.Context) ([]WalletInfo, error) {
	resp, err := rpcclient.Do[struct {
		Wallets []WalletInfo `json:"wallets"`
	}](ctx, s.c, DestWallet, "get_wallets", nil)
	if err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// GetWalletBalance fetches the balance snapshot for one wallet.
func (s *WalletService) GetWalletBalance(ctx context.Context, walletID uint32) (*WalletBalance, error) {
	if walletID == 0 {
		return nil, fmt.Errorf("walletrpc: wallet id required")
	}
	resp, err := rpcclient.Do[struct {
		WalletBalance WalletBalance `json:"wallet_balance"`
	}](ctx, s.c, DestWallet, "get_wallet_balance", map[string]interface{}{
		"wallet_id": walletID,
	})
	if err != nil {
		return nil, err
	}
	return &resp.WalletBalance, nil
}

// GetTransactions returns a page of the wallet's transaction history.
func (s *WalletService) GetTransactions(ctx context.Context, walletID uint32, start, end int) ([]TransactionRecord, error) {
	if walletID == 0 {
		return nil, fmt.Errorf("walletrpc: wallet id required")
	}
	resp, err := rpcclient.Do[struct {
		Transactions []TransactionRecord `json:"transactions"`
	}](ctx, s.c, DestWallet, "get_transactions", map[string]interface{}{
		"wallet_id": walletID,
		"start":     start,
		"end":       end,
	})
	if err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// GetNextAddress derives a receive address for the wallet. newAddress forces
// derivation of a fresh one instead of returning the current.
func (s *WalletService) GetNextAddress(ctx context.Context, walletID uint32, newAddress bool) (string, error) {
	if walletID == 0 {
		return "", fmt.Errorf("walletrpc: wallet id required")
	}
	resp, err := rpcclient.Do[struct {
		Address string `json:"address"`
	}](ctx, s.c, DestWallet, "get_next_address", map[string]interface{}{
		"wallet_id":   walletID,
		"new_address": newAddress,
	})
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

// SendTransaction asks the daemon to build, sign and broadcast a payment.
// Insufficient funds, bad addresses and the like come back as *RPCError.
func (s *WalletService) SendTransaction(ctx context.Context, walletID uint32, amount, fee uint64, address string) (*TransactionRecord, error) {
	if walletID == 0 {
		return nil, fmt.Errorf("walletrpc: wallet id required")
	}
	if address == "" {
		return nil, fmt.Errorf("walletrpc: destination address required")
	}
	resp, err := rpcclient.Do[struct {
		Transaction TransactionRecord `json:"transaction"`
	}](ctx, s.c, DestWallet, "send_transaction", map[string]interface{}{
		"wallet_id": walletID,
		"amount":    amount,
		"fee":       fee,
		"address":   address,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

// GetSyncStatus reports the wallet's chain synchronization state.
func (s *WalletService) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	return rpcclient.Do[SyncStatus](ctx, s.c, DestWallet, "get_sync_status", nil)
}

// GetHeightInfo returns the wallet's current synced height.
func (s *WalletService) GetHeightInfo(ctx context.Context) (uint32, error) {
	resp, err := rpcclient.Do[struct {
		Height uint32 `json:"height"`
	}](ctx, s.c, DestWallet, "get_height_info", nil)
	if err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// GetNetworkInfo identifies the chain the wallet is operating on.
func (s *WalletService) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	return rpcclient.Do[NetworkInfo](ctx, s.c, DestWallet, "get_network_info", nil)
}

// CreateOfferForIDs builds an offer file from a map of wallet id to amount,
// negative amounts offered and positive amounts requested.
func (s *WalletService) CreateOfferForIDs(ctx context.Context, offer map[uint32]int64, fee uint64) (string, *TradeRecord, error) {
	if len(offer) == 0 {
		return "", nil, fmt.Errorf("walletrpc: offer must name at least one wallet")
	}
	resp, err := rpcclient.Do[struct {
		Offer       string      `json:"offer"`
		TradeRecord TradeRecord `json:"trade_record"`
	}](ctx, s.c, DestWallet, "create_offer_for_ids", map[string]interface{}{
		"offer": offer,
		"fee":   fee,
	})
	if err != nil {
		return "", nil, err
	}
	return resp.Offer, &resp.TradeRecord, nil
}

// CancelOffer cancels a pending offer. When secure is set the cancellation is
// broadcast on chain so the offer can never be taken afterwards.
func (s *WalletService) CancelOffer(ctx context.Context, tradeID string, secure bool, fee uint64) error {
	if tradeID == "" {
		return fmt.Errorf("walletrpc: trade id required")
	}
	_, err := s.c.Request(ctx, DestWallet, "cancel_offer", map[string]interface{}{
		"trade_id": tradeID,
		"secure":   secure,
		"fee":      fee,
	})
	return err
}
