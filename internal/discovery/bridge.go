package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/httpkit"
)

// bridgeSensor is the subset of the sibling bridge service's
// `/v1.0/sensors` response this subsystem cares about (spec §4.4, §6).
type bridgeSensor struct {
	Port         string `json:"port"`
	DriverStatus struct {
		UDPPort *uint16 `json:"udp_port"`
	} `json:"driver_status"`
}

// Bridge queries the optional sibling bridge service for sensors it
// already owns (spec §4.4). It returns a UDP source for every entry
// that reports a udp_port, plus the list of serial ports the bridge
// owns — passed back to Serial as a skip-list to avoid port contention.
func Bridge(ctx context.Context, baseURL string, logger *slog.Logger) (sources []device.Source, ownedSerialPorts []string, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := httpkit.NewClient(httpkit.WithTimeout(bridgeRequestTimeout), httpkit.WithLogger(logger))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1.0/sensors", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: build bridge request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: bridge request: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("discovery: bridge returned status %d", resp.StatusCode)
	}

	var sensors []bridgeSensor
	if err := json.NewDecoder(resp.Body).Decode(&sensors); err != nil {
		return nil, nil, fmt.Errorf("discovery: decode bridge response: %w", err)
	}

	for _, s := range sensors {
		if s.DriverStatus.UDPPort != nil {
			sources = append(sources, device.NewUDPSource(net.IPv4(127, 0, 0, 1), *s.DriverStatus.UDPPort))
		}
		if s.Port != "" {
			ownedSerialPorts = append(ownedSerialPorts, s.Port)
		}
	}
	return sources, ownedSerialPorts, nil
}
