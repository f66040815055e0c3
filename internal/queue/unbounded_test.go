package queue

import (
	"errors"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := NewUnbounded[int]()
	for i := 0; i < 1000; i++ {
		if err := q.Push(i); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	want := 0
	for got := range q.Out() {
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		want++
	}
	if want != 1000 {
		t.Fatalf("received %d items, want 1000", want)
	}
}

func TestPushDoesNotBlockWithoutConsumer(t *testing.T) {
	q := NewUnbounded[string]()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Push("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked without a consumer")
	}
}

func TestPushAfterClose(t *testing.T) {
	q := NewUnbounded[int]()
	q.Close()
	q.Close()
	if err := q.Push(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if _, ok := <-q.Out(); ok {
		t.Fatal("Out should be closed")
	}
}

func TestConsumerWaitsForLateItems(t *testing.T) {
	q := NewUnbounded[int]()
	got := make(chan int, 1)
	go func() { got <- <-q.Out() }()

	time.Sleep(20 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never woke up")
	}
	q.Close()
}
