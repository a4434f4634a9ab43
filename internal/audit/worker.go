package audit

import "context"

// Worker consumes audit events from a channel and persists them. It keeps
// background processing testable without wiring queue implementations yet.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// NewPipeline wires a Publisher to a Worker through a buffered inbox so
// emitters never block on sink latency. Reads go straight to the store.
func NewPipeline(store Store, buffer int) (*Publisher, *Worker) {
	inbox := make(chan Event, buffer)
	return NewPublisher(&channelSink{inbox: inbox, reads: store}), NewWorker(store, inbox)
}

type channelSink struct {
	inbox chan Event
	reads Store
}

func (s *channelSink) Append(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *channelSink) ListByDocument(ctx context.Context, documentType, documentNumber string) ([]Event, error) {
	return s.reads.ListByDocument(ctx, documentType, documentNumber)
}
