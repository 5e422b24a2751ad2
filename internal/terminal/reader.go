package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/muesli/cancelreader"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/logging"
)

const readChunkSize = 256

// Reader pumps raw input into a channel of chunks for Decoder.Run. Each
// chunk is whatever a single read returned, so sequence boundaries are
// not preserved.
type Reader struct {
	cr   cancelreader.CancelReader
	log  *zap.Logger
	done chan struct{}
}

func NewReader(in io.Reader, logger *zap.Logger) (*Reader, error) {
	cr, err := cancelreader.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to create cancelable reader: %w", err)
	}
	return &Reader{cr: cr, log: logging.OrNop(logger).Named("reader"), done: make(chan struct{})}, nil
}

// Start reads until ctx is done, the input ends or Cancel is called. The
// returned channel is closed when reading stops. Start must be called at
// most once.
func (r *Reader) Start(ctx context.Context) <-chan []byte {
	chunks := make(chan []byte, 32)
	stopped := make(chan struct{})
	go func() {
		defer close(r.done)
		select {
		case <-ctx.Done():
			r.cr.Cancel()
			<-stopped
		case <-stopped:
		}
	}()
	go func() {
		defer close(stopped)
		defer close(chunks)
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.cr.Read(buf)
			if n > 0 {
				select {
				case chunks <- cloneBytes(buf[:n]):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
					r.log.Warn("input read failed", zap.Error(err))
				}
				return
			}
		}
	}()
	return chunks
}

// Done is closed once both goroutines started by Start have returned.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Cancel unblocks a pending read.
func (r *Reader) Cancel() bool {
	return r.cr.Cancel()
}

func (r *Reader) Close() error {
	return r.cr.Close()
}
