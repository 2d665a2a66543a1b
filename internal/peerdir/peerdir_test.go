package peerdir

import "testing"

func TestUpdate_NewPeerIsVisibleInSnapshot(t *testing.T) {
	d := New()
	d.Update("node-a", "127.0.0.1:7000", map[string]uint64{"x": 5})

	snap := d.Snapshot()
	info, ok := snap["node-a"]
	if !ok {
		t.Fatalf("node-a missing from snapshot")
	}
	if info.Addr != "127.0.0.1:7000" || info.LastSeq["x"] != 5 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestUpdate_AbsentTopicsAreNotCleared(t *testing.T) {
	d := New()
	d.Update("node-a", "127.0.0.1:7000", map[string]uint64{"x": 5, "y": 2})
	// Second heartbeat only reports "x"; "y" must survive untouched.
	d.Update("node-a", "127.0.0.1:7000", map[string]uint64{"x": 6})

	info := d.Snapshot()["node-a"]
	if info.LastSeq["x"] != 6 {
		t.Fatalf("x should have advanced to 6, got %d", info.LastSeq["x"])
	}
	if info.LastSeq["y"] != 2 {
		t.Fatalf("y should still be 2, got %d", info.LastSeq["y"])
	}
}

func TestUpdate_AddrIsReplacedWholesale(t *testing.T) {
	d := New()
	d.Update("node-a", "127.0.0.1:7000", nil)
	d.Update("node-a", "127.0.0.1:9999", nil)

	if d.Snapshot()["node-a"].Addr != "127.0.0.1:9999" {
		t.Fatalf("addr should have been replaced")
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	d := New()
	d.Update("node-a", "127.0.0.1:7000", map[string]uint64{"x": 1})

	snap := d.Snapshot()
	snap["node-a"].LastSeq["x"] = 999 // mutate the copy

	fresh := d.Snapshot()
	if fresh["node-a"].LastSeq["x"] != 1 {
		t.Fatalf("mutating a snapshot must not affect the directory")
	}
}

func TestAddrs_ReturnsOnlyAddresses(t *testing.T) {
	d := New()
	d.Update("node-a", "127.0.0.1:7000", map[string]uint64{"x": 1})
	d.Update("node-b", "127.0.0.1:7001", map[string]uint64{"x": 2})

	addrs := d.Addrs()
	if len(addrs) != 2 || addrs["node-a"] != "127.0.0.1:7000" || addrs["node-b"] != "127.0.0.1:7001" {
		t.Fatalf("unexpected addrs: %+v", addrs)
	}
}
