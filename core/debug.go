package core

import "sync"

// DebugWriter is a function type for writing debug lines
type DebugWriter func(string)

// Sink receives diagnostic messages tagged with the name of their source.
// Emit is fire-and-forget: it never reports failure and must not block long
// enough to disturb a poll budget.
type Sink interface {
	Emit(source, msg string)
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(source, msg string)

func (f SinkFunc) Emit(source, msg string) {
	f(source, msg)
}

var (
	// debugPrintln is the platform debug output (set by target code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln
	debugEnabled = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, a host console, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a line using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// FormatLine renders a diagnostic line as "source: msg".
func FormatLine(source, msg string) string {
	return source + ": " + msg
}

// NewWriterSink returns a Sink that formats each message as a single
// "source: msg" line and hands it to w.
func NewWriterSink(w DebugWriter) Sink {
	return SinkFunc(func(source, msg string) {
		if w != nil {
			w(FormatLine(source, msg))
		}
	})
}

// PlatformSink writes through the writer installed with SetDebugWriter.
func PlatformSink() Sink {
	return SinkFunc(func(source, msg string) {
		DebugPrintln(FormatLine(source, msg))
	})
}

// NopSink discards everything.
var NopSink Sink = SinkFunc(func(string, string) {})

// AsyncSink queues lines for a background writer. When the queue is full the
// line is dropped rather than stalling the caller.
type AsyncSink struct {
	ch      chan string
	done    chan struct{}
	dropped uint32
	mu      sync.Mutex
	closed  bool
}

// NewAsyncSink starts a worker draining up to depth queued lines into w.
func NewAsyncSink(w DebugWriter, depth int) *AsyncSink {
	s := &AsyncSink{
		ch:   make(chan string, depth),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for line := range s.ch {
			if w != nil {
				w(line)
			}
		}
	}()
	return s
}

// Emit queues the line or drops it if the queue is full.
func (s *AsyncSink) Emit(source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- FormatLine(source, msg):
	default:
		s.dropped++
	}
}

// Dropped returns how many lines were discarded because the queue was full.
func (s *AsyncSink) Dropped() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting lines and waits for the queue to drain.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
}

// Entry is one recorded diagnostic message.
type Entry struct {
	Source  string
	Message string
}

// RecordingSink keeps every message in order. Useful for post-mortem dumps
// and tests.
type RecordingSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *RecordingSink) Emit(source, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Source: source, Message: msg})
	r.mu.Unlock()
}

// Entries returns a copy of the recorded messages.
func (r *RecordingSink) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many recorded messages contain substr.
func (r *RecordingSink) Count(substr string) int {
	n := 0
	for _, e := range r.Entries() {
		if contains(e.Message, substr) {
			n++
		}
	}
	return n
}

// Dump writes every recorded line to w.
func (r *RecordingSink) Dump(w DebugWriter) {
	for _, e := range r.Entries() {
		w(FormatLine(e.Source, e.Message))
	}
}
