package discovery

import "testing"

func TestSelectBaudHigherBaudBreaksTie(t *testing.T) {
	results := []baudResult{
		{baud: 115200, messagesReceived: 10, parserErrors: 0},
		{baud: 230400, messagesReceived: 10, parserErrors: 0},
	}
	got, ok := selectBaud(results)
	if !ok || got != 230400 {
		t.Fatalf("got (%d, %v), want (230400, true)", got, ok)
	}
}

func TestSelectBaudFewerErrorsWins(t *testing.T) {
	results := []baudResult{
		{baud: 115200, messagesReceived: 10, parserErrors: 0},
		{baud: 230400, messagesReceived: 10, parserErrors: 2},
	}
	got, ok := selectBaud(results)
	if !ok || got != 115200 {
		t.Fatalf("got (%d, %v), want (115200, true)", got, ok)
	}
}

func TestSelectBaudMoreMessagesWins(t *testing.T) {
	results := []baudResult{
		{baud: 460800, messagesReceived: 3, parserErrors: 0},
		{baud: 115200, messagesReceived: 8, parserErrors: 1},
	}
	got, ok := selectBaud(results)
	if !ok || got != 115200 {
		t.Fatalf("got (%d, %v), want (115200, true)", got, ok)
	}
}

func TestSelectBaudNoResults(t *testing.T) {
	if _, ok := selectBaud(nil); ok {
		t.Fatal("expected ok=false for empty results")
	}
}
