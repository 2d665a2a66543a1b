package transport

import (
	"net"
	"strconv"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestFetchServerAndClient_RoundTrip(t *testing.T) {
	addr := "127.0.0.1:" + strconv.Itoa(freePort(t))

	srv := NewFetchServer(addr, func(req []byte) []byte {
		out := make([]byte, len(req))
		copy(out, req)
		return out
	})
	srv.Start()
	defer srv.Stop()

	// Give the listener a moment to come up.
	time.Sleep(50 * time.Millisecond)

	client := NewFetchClient()
	resp := client.FetchFrom(addr, []byte(`{"hello":"world"}`))
	if string(resp) != `{"hello":"world"}` {
		t.Fatalf("FetchFrom = %q, want echoed request body", resp)
	}
}

func TestFetchClient_UnreachablePeerReturnsNil(t *testing.T) {
	client := NewFetchClient()
	resp := client.FetchFrom("127.0.0.1:1", []byte("anything"))
	if resp != nil {
		t.Fatalf("expected nil response from an unreachable peer, got %q", resp)
	}
}
