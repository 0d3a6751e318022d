package fanout

import (
	"sync"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// subscriber owns one sink. The hub offers payloads into a one-slot mailbox;
// a payload not yet sent is replaced by a newer one.
type subscriber struct {
	id   Handle
	sink core.Sink

	mailbox chan []byte
	quit    chan struct{}
	once    sync.Once
}

func newSubscriber(id Handle, sink core.Sink) *subscriber {
	return &subscriber{
		id:      id,
		sink:    sink,
		mailbox: make(chan []byte, 1),
		quit:    make(chan struct{}),
	}
}

func (s *subscriber) offer(payload []byte) {
	for {
		select {
		case s.mailbox <- payload:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

func (s *subscriber) run(onFailure func(Handle, error)) {
	for {
		select {
		case <-s.quit:
			return
		case payload := <-s.mailbox:
			if err := s.sink.Send(payload); err != nil {
				onFailure(s.id, err)
				return
			}
			metrics.FanoutDeliveriesTotal.WithLabelValues("sent").Inc()
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.quit)
		_ = s.sink.Close()
	})
}
