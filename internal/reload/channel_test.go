package reload

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestChannelPreservesOrder(t *testing.T) {
	channel := NewChannel()
	for i := 0; i < 5; i++ {
		if err := channel.Send(Signal{Cause: strconv.Itoa(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		signal, err := channel.Recv(context.Background())
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if signal.Cause != strconv.Itoa(i) {
			t.Fatalf("expected cause %d, got %q", i, signal.Cause)
		}
	}
	if channel.Len() != 0 {
		t.Fatalf("expected empty channel, got %d", channel.Len())
	}
}

func TestChannelSendNeverBlocks(t *testing.T) {
	channel := NewChannel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			_ = channel.Send(Signal{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked without a consumer")
	}
	if channel.Len() != 10000 {
		t.Fatalf("expected 10000 queued signals, got %d", channel.Len())
	}
}

func TestChannelRecvWaitsForSend(t *testing.T) {
	channel := NewChannel()
	received := make(chan Signal, 1)
	go func() {
		signal, err := channel.Recv(context.Background())
		if err == nil {
			received <- signal
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := channel.Send(Signal{Cause: "index.html"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case signal := <-received:
		if signal.Cause != "index.html" {
			t.Fatalf("unexpected cause %q", signal.Cause)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for receive")
	}
}

func TestChannelClosedWithoutSignal(t *testing.T) {
	channel := NewChannel()
	channel.Close()

	if _, err := channel.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := channel.Send(Signal{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
	channel.Close()
}

func TestChannelDrainsAfterClose(t *testing.T) {
	channel := NewChannel()
	_ = channel.Send(Signal{Cause: "a"})
	channel.Close()

	signal, err := channel.Recv(context.Background())
	if err != nil {
		t.Fatalf("recv queued signal: %v", err)
	}
	if signal.Cause != "a" {
		t.Fatalf("unexpected cause %q", signal.Cause)
	}
	if _, err := channel.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after drain, got %v", err)
	}
}

func TestChannelCloseWakesReceiver(t *testing.T) {
	channel := NewChannel()
	result := make(chan error, 1)
	go func() {
		_, err := channel.Recv(context.Background())
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	channel.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by close")
	}
}

func TestChannelRecvHonorsContext(t *testing.T) {
	channel := NewChannel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := channel.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
