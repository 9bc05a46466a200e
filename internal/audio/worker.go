package audio

import (
	"context"
	"fmt"
	"sync"
)

type CommandKind string

const (
	CommandInit      CommandKind = "init"
	CommandRecord    CommandKind = "record"
	CommandExportWAV CommandKind = "exportWAV"
	CommandGetBuffer CommandKind = "getBuffer"
	CommandClear     CommandKind = "clear"
)

// Command is one message to the worker. Only the fields relevant to Kind are read.
type Command struct {
	Kind   CommandKind
	Config Config
	Buffer [][]float32
	Type   string
}

// Result answers an export or query, or reports a failed command.
type Result struct {
	Command CommandKind
	Blob    *Blob
	Buffers [][]float32
	Err     error
}

// Worker serializes commands onto a single Encoder. Commands run to
// completion in arrival order; state never leaves the worker goroutine except
// through copied results.
type Worker struct {
	enc      *Encoder
	commands chan Command
	results  chan Result

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewWorker wraps enc. queue bounds both the command and result channels.
func NewWorker(enc *Encoder, queue int) *Worker {
	if enc == nil {
		enc = NewEncoder()
	}
	if queue <= 0 {
		queue = 64
	}
	return &Worker{
		enc:      enc,
		commands: make(chan Command, queue),
		results:  make(chan Result, queue),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Results is closed when Run returns.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Send enqueues cmd. Record buffers are copied before they cross over.
func (w *Worker) Send(ctx context.Context, cmd Command) error {
	if cmd.Kind == CommandRecord {
		cmd.Buffer = copyBlocks(cmd.Buffer)
	}

	select {
	case <-w.done:
		return ErrWorkerStopped
	case <-w.quit:
		return ErrWorkerStopped
	default:
	}

	select {
	case w.commands <- cmd:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until ctx is cancelled or Close is called.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	defer close(w.results)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.quit:
			return nil
		case cmd := <-w.commands:
			res, ok := w.handle(cmd)
			if !ok {
				continue
			}
			select {
			case w.results <- res:
			case <-ctx.Done():
				return ctx.Err()
			case <-w.quit:
				return nil
			}
		}
	}
}

// Pending reports how many commands are queued but not yet taken by Run.
func (w *Worker) Pending() int {
	return len(w.commands)
}

// Close stops Run. Commands still queued are dropped.
func (w *Worker) Close() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Worker) handle(cmd Command) (res Result, ok bool) {
	res.Command = cmd.Kind
	defer func() {
		if r := recover(); r != nil {
			res = Result{Command: cmd.Kind, Err: fmt.Errorf("%s: panic: %v", cmd.Kind, r)}
			ok = true
		}
	}()

	switch cmd.Kind {
	case CommandInit:
		res.Err = w.enc.Init(cmd.Config)
	case CommandRecord:
		res.Err = w.enc.Record(cmd.Buffer)
	case CommandClear:
		w.enc.Clear()
	case CommandExportWAV:
		blob, err := w.enc.ExportWAV(cmd.Type)
		if err != nil {
			res.Err = err
		} else {
			res.Blob = &blob
		}
		return res, true
	case CommandGetBuffer:
		res.Buffers, res.Err = w.enc.GetBuffer()
		return res, true
	default:
		res.Err = fmt.Errorf("unknown command %q", cmd.Kind)
	}

	return res, res.Err != nil
}

func copyBlocks(blocks [][]float32) [][]float32 {
	if blocks == nil {
		return nil
	}
	out := make([][]float32, len(blocks))
	for i, b := range blocks {
		out[i] = append([]float32(nil), b...)
	}
	return out
}
