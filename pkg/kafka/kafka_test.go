package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Collection string `json:"collection"`
		Resources  int    `json:"resources"`
	}
	got, err := DecodeJSON[event]([]byte(`{"collection":"/db/LabelMe","resources":9}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Collection != "/db/LabelMe" || got.Resources != 9 {
		t.Errorf("got %+v", got)
	}
	if _, err := DecodeJSON[event]([]byte(`{`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

// fakeReader serves queued messages and cancels the consumer once drained.
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumerCommitsPastFailedMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		queue:  []kafka.Message{{Offset: 1, Value: []byte("bad")}, {Offset: 2, Value: []byte("good")}},
		cancel: cancel,
	}
	var handled []string
	c := &Consumer{
		reader: r,
		logger: slog.Default(),
		handler: func(ctx context.Context, key, value []byte) error {
			handled = append(handled, string(value))
			if string(value) == "bad" {
				return errors.New("extraction failed")
			}
			return nil
		},
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(handled) != 2 {
		t.Errorf("handled = %v", handled)
	}
	if len(r.committed) != 2 || r.committed[0] != 1 || r.committed[1] != 2 {
		t.Errorf("committed offsets = %v, want [1 2]", r.committed)
	}
	if !r.closed {
		t.Error("reader not closed")
	}
}
