package storage

import "testing"

func TestLastSeq_UnknownTopicIsZero(t *testing.T) {
	s := New()
	if got := s.LastSeq("nope"); got != 0 {
		t.Fatalf("LastSeq on unknown topic = %d, want 0", got)
	}
}

func TestAppendAndLastSeq(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("one"))
	s.Append("x", 3, []byte("three"))
	s.Append("x", 2, []byte("two"))

	if got := s.LastSeq("x"); got != 3 {
		t.Fatalf("LastSeq = %d, want 3", got)
	}
}

func TestFetch_AscendingOrderWithinRange(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("one"))
	s.Append("x", 2, []byte("two"))
	s.Append("x", 3, []byte("three"))
	s.Append("x", 4, []byte("four"))

	got := s.Fetch("x", 2, 3)
	if len(got) != 2 {
		t.Fatalf("Fetch returned %d entries, want 2", len(got))
	}
	if string(got[0]) != "two" || string(got[1]) != "three" {
		t.Fatalf("Fetch returned out of order or wrong entries: %v", got)
	}
}

func TestFetch_SkipsMissingSlotsInRange(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("one"))
	s.Append("x", 3, []byte("three"))

	got := s.Fetch("x", 1, 3)
	if len(got) != 2 {
		t.Fatalf("Fetch returned %d entries, want 2 (seq 2 missing)", len(got))
	}
}

func TestFetch_FromGreaterThanToIsEmpty(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("one"))

	got := s.Fetch("x", 5, 1)
	if len(got) != 0 {
		t.Fatalf("Fetch with from>to returned %d entries, want 0", len(got))
	}
}

func TestFetch_UnknownTopicIsEmpty(t *testing.T) {
	s := New()
	got := s.Fetch("nope", 0, 100)
	if len(got) != 0 {
		t.Fatalf("Fetch on unknown topic returned %d entries, want 0", len(got))
	}
}

func TestAppend_OverwritesSameSeq(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("first"))
	s.Append("x", 1, []byte("second"))

	got := s.Fetch("x", 1, 1)
	if len(got) != 1 || string(got[0]) != "second" {
		t.Fatalf("Append did not overwrite existing seq: %v", got)
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	s := New()
	s.Append("x", 1, []byte("x1"))
	s.Append("y", 1, []byte("y1"))

	if s.LastSeq("x") != 1 || s.LastSeq("y") != 1 {
		t.Fatalf("topics should track last seq independently")
	}
	xGot := s.Fetch("x", 1, 1)
	if len(xGot) != 1 || string(xGot[0]) != "x1" {
		t.Fatalf("fetching topic x returned wrong data: %v", xGot)
	}
}
