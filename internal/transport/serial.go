package transport

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// preambleBudget bounds the entire baud-init preamble (spec §4.4): set
// baud, pause, assert BREAK, pause, clear BREAK, pause, write 'U',
// pause, flush, clear buffers. A candidate that cannot complete this
// within the budget fails.
const preambleBudget = 100 * time.Millisecond

const preamblePause = 10 * time.Millisecond

// serialDuplex wraps an open, preamble-initialized serial port.
type serialDuplex struct {
	port serial.Port
}

// DialSerial opens path at baudrate, clears OS buffers, and runs the
// baud-rate initialization preamble before returning. The port is
// opened with go.bug.st/serial's default mode; no non-exclusive setting
// is applied.
func DialSerial(ctx context.Context, path string, baudrate uint32) (Duplex, error) {
	mode := &serial.Mode{BaudRate: int(baudrate)}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, &SourceError{Details: fmt.Sprintf("open serial %s@%d", path, baudrate), Err: err}
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &SourceError{Details: "reset input buffer", Err: err}
	}
	if err := port.ResetOutputBuffer(); err != nil {
		port.Close()
		return nil, &SourceError{Details: "reset output buffer", Err: err}
	}

	if err := runPreamble(ctx, port); err != nil {
		port.Close()
		return nil, err
	}

	return &serialDuplex{port: port}, nil
}

// runPreamble executes the §4.4 baud-init sequence, bounded by
// preambleBudget. DialSerial runs it on every open, so the baud
// auto-detect loop (discovery package) reaches it once per candidate
// through DialSerial.
func runPreamble(ctx context.Context, port serial.Port) error {
	done := make(chan error, 1)
	go func() {
		done <- preambleSteps(port)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(preambleBudget):
		return &SourceError{Details: "baud-init preamble timed out"}
	case <-ctx.Done():
		return &SourceError{Details: "baud-init preamble cancelled", Err: ctx.Err()}
	}
}

func preambleSteps(port serial.Port) error {
	time.Sleep(preamblePause)

	// Assert BREAK for one pause interval, then it is automatically
	// cleared by the driver; a matching pause follows to let the line
	// settle before the wake byte.
	if err := port.Break(preamblePause); err != nil {
		return &SourceError{Details: "assert break", Err: err}
	}
	time.Sleep(preamblePause)

	if _, err := port.Write([]byte{'U'}); err != nil {
		return &SourceError{Details: "write wake byte", Err: err}
	}
	time.Sleep(preamblePause)

	if err := port.Drain(); err != nil {
		return &SourceError{Details: "flush wake byte", Err: err}
	}

	if err := port.ResetInputBuffer(); err != nil {
		return &SourceError{Details: "clear input buffer post-preamble", Err: err}
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return &SourceError{Details: "clear output buffer post-preamble", Err: err}
	}

	return nil
}

func (s *serialDuplex) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialDuplex) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialDuplex) Close() error                { return s.port.Close() }
