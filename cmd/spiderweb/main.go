// Command spiderweb starts one overlay node and drives it from an
// interactive REPL: publish messages, inspect the peer directory, and
// shut down cleanly.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"spiderweb/internal/node"
)

var (
	nodeID       string
	unicastAddr  string
	payloadMcast string
	payloadPort  int
	ctrlMcast    string
	ctrlPort     int
)

func main() {
	root := &cobra.Command{
		Use:   "spiderweb",
		Short: "Run one spiderweb overlay node",
		RunE:  run,
	}

	root.PersistentFlags().StringVar(&nodeID, "node-id", "", "this node's identifier (required)")
	root.PersistentFlags().StringVar(&unicastAddr, "unicast-addr", "127.0.0.1:7000", "unicast bind address for the fetch server")
	root.PersistentFlags().StringVar(&payloadMcast, "payload-mcast", "239.0.0.1", "payload multicast group address")
	root.PersistentFlags().IntVar(&payloadPort, "payload-port", 7001, "payload multicast group port")
	root.PersistentFlags().StringVar(&ctrlMcast, "ctrl-mcast", "239.0.0.2", "control multicast group address")
	root.PersistentFlags().IntVar(&ctrlPort, "ctrl-port", 7002, "control multicast group port")
	root.MarkPersistentFlagRequired("node-id")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	n := node.New(node.Config{
		NodeID:       nodeID,
		UnicastAddr:  unicastAddr,
		PayloadMcast: payloadMcast,
		PayloadPort:  payloadPort,
		CtrlMcast:    ctrlMcast,
		CtrlPort:     ctrlPort,
	})

	if err := n.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	fmt.Printf("spiderweb node %q listening on %s (payload %s:%d, control %s:%d)\n",
		nodeID, unicastAddr, payloadMcast, payloadPort, ctrlMcast, ctrlPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lineCh := make(chan string)
	go readLines(lineCh)

	fmt.Println(`commands: "publish <topic> <text>", "peers", "quit"`)
	for {
		select {
		case sig := <-sigCh:
			fmt.Printf("received %s, shutting down\n", sig)
			n.Stop()
			return nil
		case line, ok := <-lineCh:
			if !ok {
				n.Stop()
				return nil
			}
			if handleCommand(n, line) {
				n.Stop()
				return nil
			}
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// handleCommand executes one REPL line and reports whether the process
// should exit.
func handleCommand(n *node.Node, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "peers":
		peers := n.Peers()
		if len(peers) == 0 {
			fmt.Println("no known peers")
			return false
		}
		for id, addr := range peers {
			fmt.Printf("%s\t%s\n", id, addr)
		}

	case "publish":
		if len(fields) < 3 {
			fmt.Println(`usage: publish <topic> <text>`)
			return false
		}
		topic := fields[1]
		text := strings.Join(fields[2:], " ")
		if err := n.Publish(topic, []byte(text)); err != nil {
			fmt.Printf("publish failed: %v\n", err)
		}

	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}
