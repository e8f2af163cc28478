package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	got []kafka.Message
	err error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.got = append(f.got, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSONAndObserves(t *testing.T) {
	w := &fakeWriter{}
	var observed int
	p := &Producer{writer: w, observer: func(topic string, n, bytes int, _ time.Duration, err error) {
		if topic != "price_forecasts" || err != nil {
			t.Errorf("observer got topic=%s err=%v", topic, err)
		}
		observed += n
	}}

	err := p.Publish(context.Background(), "price_forecasts", []byte("AAPL"), map[string]string{"symbol": "AAPL"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.got) != 1 || string(w.got[0].Value) != `{"symbol":"AAPL"}` || string(w.got[0].Key) != "AAPL" {
		t.Fatalf("unexpected messages %+v", w.got)
	}
	if observed != 1 {
		t.Fatalf("observer saw %d messages", observed)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{writer: &fakeWriter{err: boom}}
	if err := p.Publish(context.Background(), "t", nil, "raw"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
