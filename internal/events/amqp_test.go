package events

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fitmatch/backend/internal/models"
)

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	var (
		accepted atomic.Int32
		mu       sync.Mutex
		conns    []net.Conn
	)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	return "amqp://guest:guest@" + ln.Addr().String() + "/", &accepted
}

func TestAMQPPublishFailsFastWhenBrokerIsUnresponsive(t *testing.T) {
	url, accepted := silentBroker(t)
	p := newAMQPPublisher(url, "match-events", 200*time.Millisecond, time.Minute)
	e := New(MatchJoined, 2, &models.Match{ID: 1})

	start := time.Now()
	if err := p.Publish(context.Background(), e); err == nil {
		t.Fatal("expected publish to fail against a silent broker")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected dial to be bounded, took %v", elapsed)
	}

	// within the backoff no new dial is attempted
	before := accepted.Load()
	start = time.Now()
	if err := p.Publish(context.Background(), e); !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("expected immediate failure during backoff, took %v", elapsed)
	}
	if accepted.Load() != before {
		t.Fatal("expected no dial during backoff")
	}
}

func TestAMQPPublishHonoursContextDeadline(t *testing.T) {
	url, _ := silentBroker(t)
	p := newAMQPPublisher(url, "match-events", time.Minute, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.Publish(ctx, New(MatchLeft, 2, &models.Match{ID: 1})); err == nil {
		t.Fatal("expected publish to fail")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected dial bounded by ctx deadline, took %v", elapsed)
	}
}
