package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/codeBaron-dev/Rider/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestPublishPositionKeyedByPlate(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaProducer{writer: w}
	u := models.PositionUpdate{CarPlateNumber: "ABC123", Loc: models.Coord{Lat: 6.5, Lon: 3.3}, At: time.Unix(100, 0).UTC()}
	if err := k.PublishPosition(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "ABC123" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	var got models.PositionUpdate
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Loc != u.Loc || !got.At.Equal(u.At) {
		t.Fatalf("payload mismatch: %+v", got)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatal("writer not closed")
	}
}

func TestPublishPositionWrapsError(t *testing.T) {
	boom := errors.New("broker down")
	k := &KafkaProducer{writer: &fakeWriter{err: boom}}
	if err := k.PublishPosition(context.Background(), models.PositionUpdate{CarPlateNumber: "X"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
