package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const broadcastInterval = 2 * time.Second

// Broadcast announces this device over UDP until the context is
// cancelled, so peers on the same network can discover it.
func Broadcast(ctx context.Context, b DiscoveryBroadcast, discoveryPort int, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	b.App = AppIdentifier

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling discovery broadcast: %w", err)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{
		IP:   net.IPv4bcast,
		Port: discoveryPort,
	})
	if err != nil {
		return fmt.Errorf("opening broadcast socket: %w", err)
	}
	defer conn.Close()

	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		if _, err := conn.Write(payload); err != nil {
			log.Debug("discovery broadcast failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Discover listens for broadcasts until the timeout elapses and returns
// the deduplicated devices heard, keyed by ip:port.
func Discover(ctx context.Context, discoveryPort int, timeout time.Duration) ([]DiscoveryBroadcast, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: discoveryPort})
	if err != nil {
		return nil, fmt.Errorf("listening for discovery broadcasts: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	seen := make(map[string]bool)
	var devices []DiscoveryBroadcast
	buf := make([]byte, 2048)

	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return devices, nil
			}
			return devices, fmt.Errorf("reading discovery broadcast: %w", err)
		}

		var b DiscoveryBroadcast
		if err := json.Unmarshal(buf[:n], &b); err != nil {
			continue
		}
		if b.App != AppIdentifier {
			continue
		}
		key := fmt.Sprintf("%s:%d", b.IP, b.Port)
		if seen[key] {
			continue
		}
		seen[key] = true
		devices = append(devices, b)
	}
}
