package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"
)

// fakeWriter is a test writer that records messages written.
type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaProducerWithWriter(fw)
	err := p.Publish(context.Background(), "key1", map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "key1" {
		t.Errorf("expected key key1, got %s", fw.msgs[0].Key)
	}
	var body map[string]string
	if err := json.Unmarshal(fw.msgs[0].Value, &body); err != nil || body["a"] != "b" {
		t.Errorf("unexpected body %s (%v)", fw.msgs[0].Value, err)
	}
}

func TestPublish_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaProducerWithWriter(&fakeWriter{err: boom})
	if err := p.Publish(context.Background(), "k", 1); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestPublish_MarshalError(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaProducerWithWriter(fw)
	if err := p.Publish(context.Background(), "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if len(fw.msgs) != 0 {
		t.Fatalf("nothing should be written, got %d", len(fw.msgs))
	}
}

// fakeReader serves a fixed list of messages then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []skafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (skafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return skafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...skafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	reader := &fakeReader{queue: []skafka.Message{
		{Offset: 1, Key: []byte("ok")},
		{Offset: 2, Key: []byte("flaky")},
		{Offset: 3, Key: []byte("poison")},
	}}
	consumer := NewConsumerWithReader(reader).WithRetryDelay(time.Millisecond)

	var mu sync.Mutex
	calls := map[string]int{}
	handler := func(ctx context.Context, key, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls[string(key)]++
		switch string(key) {
		case "flaky":
			if calls["flaky"] < 2 {
				return errors.New("transient")
			}
		case "poison":
			return errors.New("always fails")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Start(ctx, handler)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := reader.commits(); len(got) != 3 {
		t.Fatalf("expected 3 commits, got %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls["ok"] != 1 {
		t.Errorf("ok: expected 1 call, got %d", calls["ok"])
	}
	if calls["flaky"] != 2 {
		t.Errorf("flaky: expected 2 calls, got %d", calls["flaky"])
	}
	if calls["poison"] != maxAttempts {
		t.Errorf("poison: expected %d calls, got %d", maxAttempts, calls["poison"])
	}
}
