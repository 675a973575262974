package services

import (
	"context"
	"fmt"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
)

// FarmerService issues commands to the daemon's farmer service.
type FarmerService struct {
	c *rpcclient.Client
}

// NewFarmer returns a farmer command API bound to the given connection.
func NewFarmer(c *rpcclient.Client) *FarmerService {
	return &FarmerService{c: c}
}

// GetRewardTargets returns the configured farmer and pool reward addresses.
func (s *FarmerService) GetRewardTargets(ctx context.Context, searchForPrivateKey bool) (farmerTarget, poolTarget string, err error) {
	resp, err := rpcclient.Do[struct {
		FarmerTarget string `json:"farmer_target"`
		PoolTarget   string `json:"pool_target"`
	}](ctx, s.c, DestFarmer, "get_reward_targets", map[string]interface{}{
		"search_for_private_key": searchForPrivateKey,
	})
	if err != nil {
		return "", "", err
	}
	return resp.FarmerTarget, resp.PoolTarget, nil
}

// SetRewardTargets updates the farmer and/or pool reward addresses. Empty
// strings leave the corresponding target unchanged.
func (s *FarmerService) SetRewardTargets(ctx context.Context, farmerTarget, poolTarget string) error {
	if farmerTarget == "" && poolTarget == "" {
		return fmt.Errorf("walletrpc: at least one reward target required")
	}
	payload := map[string]interface{}{}
	if farmerTarget != "" {
		payload["farmer_target"] = farmerTarget
	}
	if poolTarget != "" {
		payload["pool_target"] = poolTarget
	}
	_, err := s.c.Request(ctx, DestFarmer, "set_reward_targets", payload)
	return err
}

// GetSignagePoints lists recent signage points and any proofs found for them.
func (s *FarmerService) GetSignagePoints(ctx context.Context) ([]SignagePoint, error) {
	resp, err := rpcclient.Do[struct {
		SignagePoints []SignagePoint `json:"signage_points"`
	}](ctx, s.c, DestFarmer, "get_signage_points", nil)
	if err != nil {
		return nil, err
	}
	return resp.SignagePoints, nil
}

// GetPoolState reports pool membership status for each configured pool.
func (s *FarmerService) GetPoolState(ctx context.Context) ([]PoolState, error) {
	resp, err := rpcclient.Do[struct {
		PoolState []PoolState `json:"pool_state"`
	}](ctx, s.c, DestFarmer, "get_pool_state", nil)
	if err != nil {
		return nil, err
	}
	return resp.PoolState, nil
}

// GetHarvesters lists the harvesters attached to this farmer.
func (s *FarmerService) GetHarvesters(ctx context.Context) ([]HarvesterSummary, error) {
	resp, err := rpcclient.Do[struct {
		Harvesters []HarvesterSummary `json:"harvesters"`
	}](ctx, s.c, DestFarmer, "get_harvesters", nil)
	if err != nil {
		return nil, err
	}
	return resp.Harvesters, nil
}
