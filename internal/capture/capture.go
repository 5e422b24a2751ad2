// Package capture records raw terminal input with its timing and plays
// it back through a decoder. Recordings are a zstd stream of CBOR items:
// one Header followed by Frames.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/terminal"
)

const formatVersion = 1

type Header struct {
	Version   int    `cbor:"1,keyasint"`
	SessionID string `cbor:"2,keyasint"`
	// StartedAt is unix nanoseconds.
	StartedAt int64 `cbor:"3,keyasint"`
}

// Frame is one read from the terminal. Offset is measured from the start
// of the recording.
type Frame struct {
	Offset time.Duration `cbor:"1,keyasint"`
	Data   []byte        `cbor:"2,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("capture: CBOR encoder initialization failed: " + err.Error())
	}
}

type Recorder struct {
	clock clock.Clock
	start time.Time

	mu  sync.Mutex
	zw  *zstd.Encoder
	enc *cbor.Encoder
}

// NewRecorder writes a header to w. Close must be called to flush.
func NewRecorder(w io.Writer, clk clock.Clock) (*Recorder, error) {
	if clk == nil {
		clk = clock.Real()
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	r := &Recorder{clock: clk, start: clk.Now(), zw: zw, enc: encMode.NewEncoder(zw)}
	header := Header{Version: formatVersion, SessionID: uuid.NewString(), StartedAt: r.start.UnixNano()}
	if err := r.enc.Encode(header); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to write recording header: %w", err)
	}
	return r, nil
}

func (r *Recorder) Record(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := Frame{Offset: r.clock.Now().Sub(r.start), Data: chunk}
	if err := r.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close flushes the compressed stream. It does not close the underlying
// writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zw.Close()
}

// Read loads a whole recording.
func Read(rd io.Reader) (Header, []Frame, error) {
	zr, err := zstd.NewReader(rd)
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()

	dec := cbor.NewDecoder(zr)
	var header Header
	if err := dec.Decode(&header); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read recording header: %w", err)
	}
	if header.Version != formatVersion {
		return header, nil, fmt.Errorf("unsupported recording version %d", header.Version)
	}

	var frames []Frame
	for {
		var f Frame
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return header, frames, nil
		}
		if err != nil {
			return header, frames, fmt.Errorf("failed to read frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}

// Replay feeds frames through a decoder built from opts, reproducing the
// recorded gaps on a fake clock so timer-driven keys (lone Escape, the
// backslash window) come out as they did live.
func Replay(frames []Frame, opts terminal.Options) []terminal.KeyEvent {
	fc := clock.Fake(time.Unix(0, 0))
	opts.Clock = fc
	d := terminal.NewDecoder(opts)
	defer d.Close()

	var out []terminal.KeyEvent
	var now time.Duration
	for _, f := range frames {
		out = advance(fc, d, f.Offset-now, out)
		if f.Offset > now {
			now = f.Offset
		}
		out = append(out, d.Feed(f.Data)...)
	}
	// Let anything still waiting on a timer resolve.
	return advance(fc, d, time.Second, out)
}

func advance(fc *clock.FakeClock, d *terminal.Decoder, by time.Duration, out []terminal.KeyEvent) []terminal.KeyEvent {
	if by > 0 {
		fc.Advance(by)
	}
	for {
		select {
		case gen := <-d.Timeouts():
			out = append(out, d.Expire(gen)...)
		default:
			return out
		}
	}
}
