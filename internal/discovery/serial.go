package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
	"github.com/sonarhub/sonarfleetd/internal/transport"

	"go.bug.st/serial"
)

// ErrNoResponsiveBaud reports that no candidate baud rate elicited any
// response from the port (spec §4.4: "fail the port").
var ErrNoResponsiveBaud = errors.New("discovery: no candidate baud rate received a response")

// baudResult tallies one candidate's probe outcome.
type baudResult struct {
	baud             uint32
	messagesReceived int
	parserErrors     int
}

// Serial enumerates OS serial ports, excluding any in skip, and runs
// baud auto-detect concurrently across the remainder (spec §4.4).
// Per-port failures are collected as warnings, not returned — the
// manager's AutoCreate treats discovery as best-effort per source.
func Serial(ctx context.Context, skip []string, logger *slog.Logger) ([]device.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	skipSet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipSet[p] = struct{}{}
	}

	var (
		mu      sync.Mutex
		sources []device.Source
		wg      sync.WaitGroup
	)

	for _, path := range ports {
		if _, skipped := skipSet[path]; skipped {
			continue
		}
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			baud, err := DetectBaud(ctx, path, logger)
			if err != nil {
				logger.Warn("discovery: baud auto-detect failed", "port", path, "error", err)
				return
			}
			mu.Lock()
			sources = append(sources, device.NewSerialSource(path, baud))
			mu.Unlock()
		}()
	}
	wg.Wait()

	return sources, nil
}

// DetectBaud runs the baud-rate auto-detect algorithm of spec §4.4
// against one serial port, trying BaudCandidates high to low.
func DetectBaud(ctx context.Context, path string, logger *slog.Logger) (uint32, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var results []baudResult
	for _, candidate := range BaudCandidates {
		result, err := probeBaudCandidate(ctx, path, candidate, logger)
		if err != nil {
			logger.Debug("discovery: baud candidate unreachable", "port", path, "baud", candidate, "error", err)
			continue
		}
		if result.messagesReceived == 10 && result.parserErrors == 0 {
			return candidate, nil
		}
		if result.messagesReceived > 0 {
			results = append(results, result)
		}
	}

	baud, ok := selectBaud(results)
	if !ok {
		return 0, ErrNoResponsiveBaud
	}
	return baud, nil
}

// probeBaudCandidate opens path at baud (running the baud-init
// preamble via transport.DialSerial), issues 10 device_information
// requests at 300ms each under a 2s total budget, and tallies the
// outcome.
func probeBaudCandidate(ctx context.Context, path string, baud uint32, logger *slog.Logger) (baudResult, error) {
	budgetCtx, cancel := context.WithTimeout(ctx, baudCandidateBudget)
	defer cancel()

	duplex, err := transport.DialSerial(budgetCtx, path, baud)
	if err != nil {
		return baudResult{}, err
	}
	client := sonarproto.New(duplex, logger)
	defer client.Close()

	result := baudResult{baud: baud}
	for i := 0; i < 10; i++ {
		reqCtx, reqCancel := context.WithTimeout(budgetCtx, baudRequestTimeout)
		_, err := client.DeviceInformation(reqCtx)
		reqCancel()
		if err != nil {
			var deviceErr *sonarproto.ErrDevice
			if errors.As(err, &deviceErr) {
				result.parserErrors++
				continue
			}
			if budgetCtx.Err() != nil {
				break
			}
			continue
		}
		result.messagesReceived++
	}
	return result, nil
}

// selectBaud applies the spec §4.4 tie-break: more messages wins; ties
// broken by fewer parser errors; remaining ties broken by higher baud.
func selectBaud(results []baudResult) (uint32, bool) {
	if len(results) == 0 {
		return 0, false
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.messagesReceived != b.messagesReceived {
			return a.messagesReceived > b.messagesReceived
		}
		if a.parserErrors != b.parserErrors {
			return a.parserErrors < b.parserErrors
		}
		return a.baud > b.baud
	})
	return results[0].baud, true
}
