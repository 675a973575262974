package services

import (
	"context"
	"fmt"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
)

// FullNodeService issues commands to the daemon's full node service.
type FullNodeService struct {
	c *rpcclient.Client
}

// NewFullNode returns a full node command API bound to the given connection.
func NewFullNode(c *rpcclient.Client) *FullNodeService {
	return &FullNodeService{c: c}
}

// GetBlockchainState returns the node dashboard snapshot: peak, difficulty,
// netspace, mempool and sync progress.
func (s *FullNodeService) GetBlockchainState(ctx context.Context) (*BlockchainState, error) {
	resp, err := rpcclient.Do[struct {
		BlockchainState BlockchainState `json:"blockchain_state"`
	}](ctx, s.c, DestFullNode, "get_blockchain_state", nil)
	if err != nil {
		return nil, err
	}
	return &resp.BlockchainState, nil
}

// GetConnections lists the node's current peer connections.
func (s *FullNodeService) GetConnections(ctx context.Context) ([]ConnectionInfo, error) {
	resp, err := rpcclient.Do[struct {
		Connections []ConnectionInfo `json:"connections"`
	}](ctx, s.c, DestFullNode, "get_connections", nil)
	if err != nil {
		return nil, err
	}
	return resp.Connections, nil
}

// OpenConnection asks the node to dial a new peer.
func (s *FullNodeService) OpenConnection(ctx context.Context, host string, port uint16) error {
	if host == "" {
		return fmt.Errorf("walletrpc: peer host required")
	}
	_, err := s.c.Request(ctx, DestFullNode, "open_connection", map[string]interface{}{
		"host": host,
		"port": port,
	})
	return err
}

// CloseConnection drops the peer with the given node id.
func (s *FullNodeService) CloseConnection(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("walletrpc: node id required")
	}
	_, err := s.c.Request(ctx, DestFullNode, "close_connection", map[string]interface{}{
		"node_id": nodeID,
	})
	return err
}

// GetBlockRecordByHeight fetches the block record at a chain height.
func (s *FullNodeService) GetBlockRecordByHeight(ctx context.Context, height uint32) (*BlockRecord, error) {
	resp, err := rpcclient.Do[struct {
		BlockRecord BlockRecord `json:"block_record"`
	}](ctx, s.c, DestFullNode, "get_block_record_by_height", map[string]interface{}{
		"height": height,
	})
	if err != nil {
		return nil, err
	}
	return &resp.BlockRecord, nil
}

// GetNetworkInfo identifies the chain the node is on.
func (s *FullNodeService) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	return rpcclient.Do[NetworkInfo](ctx, s.c, DestFullNode, "get_network_info", nil)
}
