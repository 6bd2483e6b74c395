package generator

import (
	"context"
)

// Stream runs a single goroutine that owns it and sends every batch it
// produces on the returned channel, so each batch reaches exactly one
// receiver. It stops when ctx is done or after the first error, which is
// sent on the error channel. Both channels are closed on return.
func Stream(ctx context.Context, it Iterator, buffer int) (<-chan Batch, <-chan error) {
	if buffer < 0 {
		buffer = 0
	}
	out := make(chan Batch, buffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := it.Next()
			if err != nil {
				errCh <- err
				return
			}

			select {
			case <-ctx.Done():
				return
			case out <- batch:
			}
		}
	}()

	return out, errCh
}
