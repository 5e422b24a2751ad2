package terminal

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/metrics"
)

const (
	DefaultBackslashEnterWindow = 15 * time.Millisecond
	DefaultEscapeTimeout        = 50 * time.Millisecond
)

// Options configures a Decoder. Zero durations select the defaults; a
// negative duration disables that timer.
type Options struct {
	MaxSequenceLen       int
	BackslashEnterWindow time.Duration
	// EscapeTimeout is how long a lone ESC waits for the rest of a
	// sequence before it is reported as the Escape key.
	EscapeTimeout time.Duration
	OptionAsMeta  bool

	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// PasteSession accumulates a bracketed paste until its end marker.
type PasteSession struct {
	active bool
	buffer []byte
}

type pendingTimer struct {
	gen   uint64
	timer clock.Timer
}

func (p *pendingTimer) armed() bool { return p.timer != nil }

func (p *pendingTimer) cancel() {
	if p.timer != nil {
		p.timer.Stop()
	}
	*p = pendingTimer{}
}

// Decoder turns raw terminal input into KeyEvents. It is not safe for
// concurrent use: one goroutine calls Feed and Expire, usually via Run.
type Decoder struct {
	opts    Options
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	seq   *SequenceBuffer
	paste PasteSession

	gen       uint64
	backslash pendingTimer
	escape    pendingTimer
	timeouts  chan uint64

	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewDecoder(opts Options) *Decoder {
	if opts.BackslashEnterWindow == 0 {
		opts.BackslashEnterWindow = DefaultBackslashEnterWindow
	}
	if opts.EscapeTimeout == 0 {
		opts.EscapeTimeout = DefaultEscapeTimeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Decoder{
		opts:     opts,
		clock:    clk,
		log:      logging.OrNop(opts.Logger).Named("terminal"),
		metrics:  metrics.OrNew(opts.Metrics),
		seq:      NewSequenceBuffer(opts.MaxSequenceLen),
		timeouts: make(chan uint64, 16),
		done:     make(chan struct{}),
	}
}

// Timeouts delivers timer generations to pass to Expire.
func (d *Decoder) Timeouts() <-chan uint64 {
	return d.timeouts
}

// Pending reports how many bytes of an unfinished sequence are buffered.
func (d *Decoder) Pending() int {
	return d.seq.Len()
}

func (d *Decoder) Pasting() bool {
	return d.paste.active
}

// Feed decodes one chunk of input and returns the events it completes.
func (d *Decoder) Feed(chunk []byte) []KeyEvent {
	if d.closed {
		return nil
	}
	d.escape.cancel()

	data := chunk
	if d.seq.Len() > 0 {
		data = append(d.seq.Take(), chunk...)
	}

	var out []KeyEvent
	for len(data) > 0 {
		if d.paste.active {
			var ev KeyEvent
			var ok bool
			data, ev, ok = d.feedPaste(data)
			if ok {
				out = d.emit(out, ev)
			}
			continue
		}

		n, status := scanToken(data)
		switch status {
		case tokenIncomplete:
			d.hold(data)
			data = nil
		case tokenMalformed:
			d.log.Debug("discarding corrupt sequence", zap.ByteString("prefix", data[:n]))
			d.metrics.SequenceResyncs.Inc()
			data = data[n:]
		default:
			out = d.handleToken(out, data[:n])
			data = data[n:]
		}
	}
	return out
}

// feedPaste appends to the paste buffer. When the end marker arrives it
// returns the finished paste and whatever input followed the marker.
func (d *Decoder) feedPaste(data []byte) ([]byte, KeyEvent, bool) {
	// The marker may straddle the previous chunk.
	from := len(d.paste.buffer) - (len(pasteEnd) - 1)
	if from < 0 {
		from = 0
	}
	d.paste.buffer = append(d.paste.buffer, data...)
	idx := bytes.Index(d.paste.buffer[from:], []byte(pasteEnd))
	if idx < 0 {
		return nil, KeyEvent{}, false
	}
	idx += from

	text := normalizeNewlines(d.paste.buffer[:idx])
	rest := cloneBytes(d.paste.buffer[idx+len(pasteEnd):])
	d.paste = PasteSession{}
	return rest, KeyEvent{Name: "paste", Paste: true, Sequence: text}, true
}

func normalizeNewlines(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}

// hold buffers an unfinished sequence, or drops it when it would
// overflow the bound.
func (d *Decoder) hold(rest []byte) {
	if !d.seq.Append(rest) {
		d.log.Warn("dropping oversized escape sequence",
			zap.Int("len", len(rest)), zap.Int("max", d.seq.Max()))
		d.metrics.SequenceOverflows.Inc()
		return
	}
	if d.opts.EscapeTimeout > 0 {
		d.escape = d.arm(d.opts.EscapeTimeout)
	}
}

func (d *Decoder) handleToken(out []KeyEvent, tok []byte) []KeyEvent {
	if tok[0] != esc {
		return d.emit(out, parsePlain(tok, d.opts.OptionAsMeta))
	}

	switch string(tok) {
	case focusIn, focusOut:
		return out
	case pasteStart:
		d.paste = PasteSession{active: true}
		return out
	case pasteEnd:
		return out
	}

	ev, res := parseEscape(tok, d.opts.OptionAsMeta)
	switch res {
	case ignored:
		return out
	case unknown:
		d.log.Debug("passing through unrecognized sequence", zap.ByteString("seq", tok))
		ev = KeyEvent{Sequence: cloneBytes(tok)}
	}
	return d.emit(out, ev)
}

// emit applies the backslash+Enter fallback before appending ev.
func (d *Decoder) emit(out []KeyEvent, ev KeyEvent) []KeyEvent {
	if d.backslash.armed() {
		d.backslash.cancel()
		if ev.IsEnter() && ev.Plain() {
			seq := append([]byte{'\\'}, ev.Sequence...)
			return d.push(out, KeyEvent{Name: "return", Shift: true, Sequence: seq})
		}
		out = d.push(out, backslashKey())
	}

	if ev.Plain() && ev.Name == "\\" && d.opts.BackslashEnterWindow > 0 {
		d.backslash = d.arm(d.opts.BackslashEnterWindow)
		return out
	}
	return d.push(out, ev)
}

func (d *Decoder) push(out []KeyEvent, ev KeyEvent) []KeyEvent {
	if ev.Paste {
		d.metrics.PastesCompleted.Inc()
	} else {
		d.metrics.KeysDecoded.Inc()
	}
	return append(out, ev)
}

func backslashKey() KeyEvent {
	return KeyEvent{Name: "\\", Sequence: []byte{'\\'}}
}

func (d *Decoder) arm(after time.Duration) pendingTimer {
	d.gen++
	gen := d.gen
	t := d.clock.AfterFunc(after, func() {
		select {
		case d.timeouts <- gen:
		case <-d.done:
		}
	})
	return pendingTimer{gen: gen, timer: t}
}

// Expire handles a generation received from Timeouts. Generations of
// timers that were cancelled or superseded are ignored.
func (d *Decoder) Expire(gen uint64) []KeyEvent {
	if d.closed || gen == 0 {
		return nil
	}
	switch gen {
	case d.backslash.gen:
		d.backslash = pendingTimer{}
		return d.push(nil, backslashKey())
	case d.escape.gen:
		d.escape = pendingTimer{}
		return d.flushHeld(nil)
	}
	return nil
}

// flushHeld resolves a buffered sequence that stopped arriving.
func (d *Decoder) flushHeld(out []KeyEvent) []KeyEvent {
	data := d.seq.Take()
	if len(data) == 0 {
		return out
	}
	if data[0] == esc {
		switch {
		case len(data) == 1:
			return d.emit(out, KeyEvent{Name: "escape", Sequence: data})
		case len(data) == 2 && data[1] == esc:
			ev, _ := parseEscape(data, d.opts.OptionAsMeta)
			return d.emit(out, ev)
		case len(data) == 2 && (data[1] == '[' || data[1] == 'O'):
			ev := parsePlain(data[1:], false)
			ev.Meta = true
			ev.Sequence = data
			return d.emit(out, ev)
		}
	}
	d.log.Debug("discarding stalled sequence", zap.ByteString("seq", data))
	d.metrics.SequenceResyncs.Inc()
	return out
}

// Run owns the decoder until ctx is done or chunks is closed, then tears
// it down. emit is called on this goroutine, in order.
func (d *Decoder) Run(ctx context.Context, chunks <-chan []byte, emit func(KeyEvent)) error {
	defer d.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			for _, ev := range d.Feed(chunk) {
				emit(ev)
			}
		case gen := <-d.timeouts:
			for _, ev := range d.Expire(gen) {
				emit(ev)
			}
		}
	}
}

// Close cancels every timer and drops buffered input without emitting
// it. An unfinished paste is discarded, never flushed as keys.
func (d *Decoder) Close() {
	d.closeOnce.Do(func() {
		d.closed = true
		d.backslash.cancel()
		d.escape.cancel()
		close(d.done)
		if d.paste.active {
			d.log.Debug("discarding unfinished paste", zap.Int("bytes", len(d.paste.buffer)))
		}
		d.paste = PasteSession{}
		d.seq.Reset()
	})
}
