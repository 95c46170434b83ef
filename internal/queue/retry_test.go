package queue

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange, key string
	msg           amqp091.Publishing
}

type fakePublisher struct {
	err  error
	sent []published
}

func (p *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acks, nacks int
	requeued    bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	a.nacks++
	return nil
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name        string
		headers     amqp091.Table
		pubErr      error
		wantKey     string
		wantRetries int32
		wantAcks    int
		wantNacks   int
	}{
		{name: "first failure goes to retry", wantKey: "graph_queue_retry", wantRetries: 1, wantAcks: 1},
		{name: "counter is incremented", headers: amqp091.Table{"x-retries": int32(3)}, wantKey: "graph_queue_retry", wantRetries: 4, wantAcks: 1},
		{name: "exhausted goes to dlq", headers: amqp091.Table{"x-retries": int32(MaxRetries)}, wantKey: "graph_queue_dlq", wantRetries: MaxRetries, wantAcks: 1},
		{name: "publish failure requeues", pubErr: errors.New("closed"), wantNacks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.pubErr}
			ack := &fakeAck{}
			msg := amqp091.Delivery{Acknowledger: ack, Headers: tt.headers, Body: []byte(`{"graph_id":"g1"}`)}

			HandleProcessingError(pub, msg, GraphQueue)

			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks {
				t.Fatalf("acks = %d, nacks = %d, want %d, %d", ack.acks, ack.nacks, tt.wantAcks, tt.wantNacks)
			}
			if tt.pubErr != nil {
				if !ack.requeued {
					t.Fatal("expected message to be requeued")
				}
				return
			}
			if len(pub.sent) != 1 {
				t.Fatalf("published %d messages, want 1", len(pub.sent))
			}
			got := pub.sent[0]
			if got.key != tt.wantKey {
				t.Fatalf("published to %q, want %q", got.key, tt.wantKey)
			}
			if r := got.msg.Headers["x-retries"]; r != tt.wantRetries {
				t.Fatalf("x-retries = %v, want %d", r, tt.wantRetries)
			}
			if string(got.msg.Body) != `{"graph_id":"g1"}` {
				t.Fatalf("body changed: %s", got.msg.Body)
			}
		})
	}
}

func TestHandleProcessingError_DoesNotMutateDeliveryHeaders(t *testing.T) {
	headers := amqp091.Table{"x-retries": int32(1)}
	HandleProcessingError(&fakePublisher{}, amqp091.Delivery{Acknowledger: &fakeAck{}, Headers: headers}, GraphQueue)
	if headers["x-retries"] != int32(1) {
		t.Fatalf("delivery headers were modified: %v", headers)
	}
}
