package transport

import (
	"testing"
	"time"
)

// TestDatagramTransport_SendAndReceive exercises a full loopback round
// trip on a multicast group local to this host. Skips itself if the
// sandbox's network namespace has no multicast-capable interface.
func TestDatagramTransport_SendAndReceive(t *testing.T) {
	const group = "239.1.2.3"
	const port = 17171

	sender := New(group, port)
	if err := sender.InitSender(); err != nil {
		t.Skipf("no usable multicast sender in this environment: %v", err)
	}
	defer sender.Close()

	receiver := New(group, port)
	if err := receiver.InitReceiver(); err != nil {
		t.Skipf("no usable multicast receiver in this environment: %v", err)
	}
	defer receiver.StopRecv()

	received := make(chan []byte, 1)
	receiver.StartRecv(func(data []byte) {
		received <- data
	})

	want := []byte("hello spiderweb")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := sender.Send(want); err != nil {
			t.Fatalf("Send: %v", err)
		}
		select {
		case got := <-received:
			if string(got) != string(want) {
				t.Fatalf("received %q, want %q", got, want)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Skip("no datagram observed; likely no multicast routing in this sandbox")
}
