package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// discoveryProbe is the outbound discovery probe payload (spec §6).
const discoveryProbe = "Discovery"

// responsePattern matches the strict four-line discovery response (spec
// §6): name, manufacturer, MAC address, IP address, each CRLF
// terminated. Octets tolerate up to two leading zeros.
var responsePattern = regexp.MustCompile(
	`^(.+)\r\n(.+)\r\nMAC Address:- ([0-9A-Fa-f]{2}(?:-[0-9A-Fa-f]{2}){5})\r\n` +
		`IP Address:- (\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\r\n$`,
)

// ErrUnparseableResponse reports a discovery response that did not
// match the strict four-line format (spec §6: "any deviation ⇒
// response discarded").
var ErrUnparseableResponse = errors.New("discovery: unparseable network response")

// ParseNetworkResponse parses one UDP discovery response and returns
// the UDP source it describes (spec §4.4, §6). Invalid UTF-8 and
// malformed responses both report ErrUnparseableResponse so callers can
// skip them with a warning rather than fail the whole discovery round.
func ParseNetworkResponse(raw []byte) (device.Source, error) {
	if !utf8.Valid(raw) {
		return device.Source{}, ErrUnparseableResponse
	}
	m := responsePattern.FindStringSubmatch(string(raw))
	if m == nil {
		return device.Source{}, ErrUnparseableResponse
	}

	octets := make([]byte, 4)
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(m[4+i])
		if err != nil || n < 0 || n > 255 {
			return device.Source{}, ErrUnparseableResponse
		}
		octets[i] = byte(n)
	}
	ip := net.IPv4(octets[0], octets[1], octets[2], octets[3])
	return device.NewUDPSource(ip, ss1StreamPort), nil
}

// Network runs the UDP broadcast discovery probe and returns one
// source per well-formed response received within the discovery window
// (spec §4.4). It opens its own ephemeral socket and runs on the
// calling goroutine — the spec's "dedicated short-lived thread" maps to
// a goroutine performing the one blocking read-with-deadline loop the
// runtime exempts from the no-blocking-syscalls rule (spec §5).
func Network(ctx context.Context, logger *slog.Logger) ([]device.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: open broadcast socket: %w", err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("discovery: enable broadcast: %w", err)
	}

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: ss1DiscoveryPort}
	if _, err := conn.WriteToUDP([]byte(discoveryProbe), broadcastAddr); err != nil {
		return nil, fmt.Errorf("discovery: send probe: %w", err)
	}

	deadline := time.Now().Add(networkDiscoveryWindow)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("discovery: set read deadline: %w", err)
	}

	var sources []device.Source
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return sources, ctx.Err()
		default:
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return sources, nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return sources, nil
			}
			return sources, nil
		}

		src, err := ParseNetworkResponse(buf[:n])
		if err != nil {
			logger.Warn("discovery: skipping unparseable network response", "error", err)
			continue
		}
		sources = append(sources, src)
	}
}

// enableBroadcast sets SO_BROADCAST on conn's underlying file
// descriptor. net.UDPConn exposes no higher-level API for this;
// sending to the limited broadcast address without it fails with
// EACCES on Linux and Darwin.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
