package gateway

import (
	"testing"
	"time"
)

var replayT0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReplayBuffer_Range(t *testing.T) {
	rb := NewReplayBuffer(100)
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, replayT0.Add(time.Duration(i)*time.Second), []byte("msg"))
	}

	got := rb.Range(3, 7)
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	for i, e := range got {
		if e.Seq != int64(i)+3 {
			t.Fatalf("entry %d: expected seq %d, got %d", i, i+3, e.Seq)
		}
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, replayT0, []byte("msg"))
	}
	if rb.Len() != 5 {
		t.Fatalf("expected len 5, got %d", rb.Len())
	}
	got := rb.Range(1, 10)
	if len(got) != 5 || got[0].Seq != 4 || got[4].Seq != 8 {
		t.Fatalf("expected seqs 4..8, got %+v", got)
	}
}

func TestReplayBuffer_ExactlyFull(t *testing.T) {
	rb := NewReplayBuffer(3)
	for i := int64(1); i <= 3; i++ {
		rb.Push(i, replayT0, nil)
	}
	got := rb.Range(0, 10)
	if len(got) != 3 || got[0].Seq != 1 || got[2].Seq != 3 {
		t.Fatalf("expected seqs 1..3 in order, got %+v", got)
	}
}

func TestReplayBuffer_After(t *testing.T) {
	rb := NewReplayBuffer(10)
	for i := int64(1); i <= 4; i++ {
		rb.Push(i, replayT0.Add(time.Duration(i)*time.Minute), nil)
	}
	got := rb.After(replayT0.Add(2 * time.Minute))
	if len(got) != 2 || got[0].Seq != 3 {
		t.Fatalf("expected seqs 3,4, got %+v", got)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	if got := rb.Range(1, 100); len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}
