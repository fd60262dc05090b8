// Package test holds artifacts, collaborators and fixtures shared by the engine tests.
package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

// Ints returns the integers from..to (inclusive) as items.
func Ints(from, to int) []any {
	out := make([]any, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// ListReader reads Items in order. Its checkpoint token is the index of the next item.
type ListReader struct {
	Items []any
	// FailOnce makes the read at the given 0-based index fail once with the mapped error.
	FailOnce map[int]error

	mu     sync.Mutex
	pos    int
	opens  int
	closes int
}

var _ port.ItemReader = (*ListReader)(nil)

func (r *ListReader) Open(_ context.Context, checkpoint []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	r.pos = 0
	_, err := serialization.UnmarshalToken(checkpoint, &r.pos)
	return err
}

func (r *ListReader) ReadItem(context.Context) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailOnce[r.pos]; ok {
		delete(r.FailOnce, r.pos)
		return nil, err
	}
	if r.pos >= len(r.Items) {
		return nil, port.ErrNoMoreItems
	}
	item := r.Items[r.pos]
	r.pos++
	return item, nil
}

func (r *ListReader) CheckpointInfo(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return serialization.MarshalToken(r.pos)
}

func (r *ListReader) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

// Opens returns how many times the reader was opened.
func (r *ListReader) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Closes returns how many times the reader was closed.
func (r *ListReader) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// RecordingWriter keeps every chunk handed to WriteItems.
type RecordingWriter struct {
	// Fail, when set, is consulted before each write.
	Fail func(items []any) error

	mu     sync.Mutex
	chunks [][]any
}

var _ port.ItemWriter = (*RecordingWriter)(nil)

func (w *RecordingWriter) Open(context.Context, []byte) error { return nil }

func (w *RecordingWriter) WriteItems(_ context.Context, items []any) error {
	if w.Fail != nil {
		if err := w.Fail(items); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = append(w.chunks, append([]any(nil), items...))
	return nil
}

func (w *RecordingWriter) CheckpointInfo(context.Context) ([]byte, error) { return nil, nil }

func (w *RecordingWriter) Close(context.Context) error { return nil }

// Chunks returns the written chunks in order.
func (w *RecordingWriter) Chunks() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.chunks...)
}

// Written returns every written item in order.
func (w *RecordingWriter) Written() []any {
	var out []any
	for _, c := range w.Chunks() {
		out = append(out, c...)
	}
	return out
}

// FuncProcessor adapts a function to port.ItemProcessor.
type FuncProcessor func(ctx context.Context, item any) (any, error)

func (f FuncProcessor) ProcessItem(ctx context.Context, item any) (any, error) { return f(ctx, item) }

// FuncBatchlet adapts a function to port.Batchlet.
type FuncBatchlet func(ctx context.Context) (string, error)

func (f FuncBatchlet) Process(ctx context.Context) (string, error) { return f(ctx) }

func (f FuncBatchlet) Stop(context.Context) error { return nil }

// BlockingBatchlet blocks in Process until Stop is called.
type BlockingBatchlet struct {
	Started chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewBlockingBatchlet creates a BlockingBatchlet.
func NewBlockingBatchlet() *BlockingBatchlet {
	return &BlockingBatchlet{Started: make(chan struct{}), stopped: make(chan struct{})}
}

func (b *BlockingBatchlet) Process(ctx context.Context) (string, error) {
	close(b.Started)
	select {
	case <-b.stopped:
		return "STOPPED_BY_REQUEST", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *BlockingBatchlet) Stop(context.Context) error {
	b.once.Do(func() { close(b.stopped) })
	return nil
}

// EventRecorder records listener callbacks in the order they happen. It implements the
// job, step and chunk listener families.
type EventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (e *EventRecorder) add(ev string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

// Events returns the recorded events.
func (e *EventRecorder) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *EventRecorder) BeforeJob(context.Context) error          { return e.add("beforeJob") }
func (e *EventRecorder) AfterJob(context.Context) error           { return e.add("afterJob") }
func (e *EventRecorder) BeforeStep(context.Context) error         { return e.add("beforeStep") }
func (e *EventRecorder) AfterStep(context.Context) error          { return e.add("afterStep") }
func (e *EventRecorder) BeforeChunk(context.Context) error        { return e.add("beforeChunk") }
func (e *EventRecorder) AfterChunk(context.Context) error         { return e.add("afterChunk") }
func (e *EventRecorder) OnError(_ context.Context, _ error) error { return e.add("chunkError") }

var (
	_ port.JobListener   = (*EventRecorder)(nil)
	_ port.StepListener  = (*EventRecorder)(nil)
	_ port.ChunkListener = (*EventRecorder)(nil)
	_ port.Decider       = (FuncDecider)(nil)
)

// FuncDecider adapts a function to port.Decider.
type FuncDecider func(ctx context.Context, executions []*model.StepExecution) (string, error)

func (f FuncDecider) Decide(ctx context.Context, executions []*model.StepExecution) (string, error) {
	return f(ctx, executions)
}

// Trace records the names of executed artifacts in order.
type Trace struct {
	mu    sync.Mutex
	names []string
}

// Add appends name.
func (t *Trace) Add(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
}

// Names returns the recorded names.
func (t *Trace) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names...)
}
