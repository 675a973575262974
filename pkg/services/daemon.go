package services

import (
	"context"
	"fmt"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
)

// DaemonService issues control commands to the daemon process itself:
// starting and stopping the services it supervises, and shutting it down.
type DaemonService struct {
	c *rpcclient.Client
}

// NewDaemon returns a daemon control API bound to the given connection.
func NewDaemon(c *rpcclient.Client) *DaemonService {
	return &DaemonService{c: c}
}

// IsRunning reports whether the named service is currently up.
func (s *DaemonService) IsRunning(ctx context.Context, service string) (bool, error) {
	if service == "" {
		return false, fmt.Errorf("walletrpc: service name required")
	}
	resp, err := rpcclient.Do[struct {
		IsRunning bool `json:"is_running"`
	}](ctx, s.c, DestDaemon, "is_running", map[string]interface{}{
		"service": service,
	})
	if err != nil {
		return false, err
	}
	return resp.IsRunning, nil
}

// StartService asks the daemon to launch one of its supervised services.
func (s *DaemonService) StartService(ctx context.Context, service string) error {
	if service == "" {
		return fmt.Errorf("walletrpc: service name required")
	}
	_, err := s.c.Request(ctx, DestDaemon, "start_service", map[string]interface{}{
		"service": service,
	})
	return err
}

// StopService asks the daemon to stop one of its supervised services.
func (s *DaemonService) StopService(ctx context.Context, service string) error {
	if service == "" {
		return fmt.Errorf("walletrpc: service name required")
	}
	_, err := s.c.Request(ctx, DestDaemon, "stop_service", map[string]interface{}{
		"service": service,
	})
	return err
}

// RegisterService announces this client to the daemon so it routes events
// here. Typically called once right after connecting.
func (s *DaemonService) RegisterService(ctx context.Context, service string) error {
	if service == "" {
		return fmt.Errorf("walletrpc: service name required")
	}
	_, err := s.c.Request(ctx, DestDaemon, "register_service", map[string]interface{}{
		"service": service,
	})
	return err
}

// GetVersion returns the daemon's version string.
func (s *DaemonService) GetVersion(ctx context.Context) (string, error) {
	resp, err := rpcclient.Do[struct {
		Version string `json:"version"`
	}](ctx, s.c, DestDaemon, "get_version", nil)
	if err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Exit asks the daemon to shut down. The connection will drop shortly after;
// callers should expect ErrConnectionLost on anything still in flight.
func (s *DaemonService) Exit(ctx context.Context) error {
	_, err := s.c.Request(ctx, DestDaemon, "exit", nil)
	return err
}
