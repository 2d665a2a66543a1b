// Package transport implements spiderweb's two external collaborators:
// a best-effort UDP multicast datagram transport (used for both the
// payload and control groups) and a unicast request/reply transport
// used for gap-repair fetches.
package transport

import (
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	maxDatagramSize = 65536
	recvPollTimeout = 100 * time.Millisecond
	multicastTTL    = 32
)

// RecvCallback is invoked once per received datagram with the raw
// bytes. It must not block for long — it runs on the transport's
// receive goroutine.
type RecvCallback func(data []byte)

// DatagramTransport is a best-effort, possibly-lossy, unordered
// multicast transport. One instance is used for the payload group and
// a second, independent instance for the control group, rather than
// multiplexing both over one socket.
type DatagramTransport struct {
	addr string
	port int

	sendConn *ipv4.PacketConn
	dest     *net.UDPAddr

	recvConn *ipv4.PacketConn

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an uninitialized transport for the given multicast
// address and port.
func New(mcastAddr string, port int) *DatagramTransport {
	return &DatagramTransport{addr: mcastAddr, port: port}
}

// InitSender opens a sending socket and sets the multicast TTL, so
// packets can cross routers on the LAN rather than stay confined to
// the local segment.
func (t *DatagramTransport) InitSender() error {
	pc, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return err
	}
	ipv4Conn := ipv4.NewPacketConn(pc)
	if err := ipv4Conn.SetMulticastTTL(multicastTTL); err != nil {
		pc.Close()
		return err
	}

	ip := net.ParseIP(t.addr)
	t.sendConn = ipv4Conn
	t.dest = &net.UDPAddr{IP: ip, Port: t.port}
	return nil
}

// InitReceiver opens a receiving socket bound to the group port and
// joins the multicast group on every multicast-capable interface.
func (t *DatagramTransport) InitReceiver() error {
	pc, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(t.port)))
	if err != nil {
		return err
	}
	ipv4Conn := ipv4.NewPacketConn(pc)

	group := &net.UDPAddr{IP: net.ParseIP(t.addr)}
	ifaces, err := net.Interfaces()
	if err != nil {
		pc.Close()
		return err
	}

	joined := 0
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := ipv4Conn.JoinGroup(iface, group); err == nil {
			joined++
		}
	}
	if joined == 0 {
		// Fall back to the default multicast interface.
		if err := ipv4Conn.JoinGroup(nil, group); err != nil {
			pc.Close()
			return err
		}
	}

	t.recvConn = ipv4Conn
	return nil
}

// Send broadcasts data to the multicast group. Best-effort: a failed
// send is not retried.
func (t *DatagramTransport) Send(data []byte) error {
	_, err := t.sendConn.WriteTo(data, nil, t.dest)
	return err
}

// StartRecv launches the background receive loop. Each datagram
// invokes cb synchronously on the receive goroutine. The loop polls
// with a short read deadline (~100ms) so StopRecv is observed
// promptly.
func (t *DatagramTransport) StartRecv(cb RecvCallback) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		buf := make([]byte, maxDatagramSize)
		for {
			select {
			case <-t.done:
				return
			default:
			}

			t.recvConn.SetReadDeadline(time.Now().Add(recvPollTimeout))
			n, _, _, err := t.recvConn.ReadFrom(buf)
			if err != nil {
				continue // timeout or transient read error; keep polling
			}
			if n == 0 {
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			cb(data)
		}
	}()
}

// StopRecv signals the receive loop to exit and waits for it to join.
func (t *DatagramTransport) StopRecv() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
	if t.recvConn != nil {
		if err := t.recvConn.Close(); err != nil {
			log.Printf("transport: error closing receive socket for %s:%d: %v", t.addr, t.port, err)
		}
	}
}

// Close releases the sending socket. Call after StopRecv during node
// shutdown.
func (t *DatagramTransport) Close() {
	if t.sendConn != nil {
		if err := t.sendConn.Close(); err != nil {
			log.Printf("transport: error closing send socket for %s:%d: %v", t.addr, t.port, err)
		}
	}
}
