package present

import "context"

// Future is a handle to GPU work that was handed to a queue. The loop keeps one
// for the previous frame and one per swapchain image, and never holds a nil Future:
// "nothing submitted yet" is represented by Ready().
type Future interface {
	// Done reports whether the work has completed. It never blocks.
	Done() bool
	// Wait blocks until the work has completed or ctx is done.
	Wait(ctx context.Context) error
	// CleanupFinished releases resources held by work that has already completed.
	// It never blocks.
	CleanupFinished()
}

type readyFuture struct{}

func (readyFuture) Done() bool { return true }
func (readyFuture) Wait(ctx context.Context) error { return nil }
func (readyFuture) CleanupFinished() {}

// Ready returns an already-satisfied placeholder
func Ready() Future {
	return readyFuture{}
}

// IsReady reports whether f is the Ready placeholder
func IsReady(f Future) bool {
	_, ok := f.(readyFuture)
	return ok
}

type joinedFuture []Future

func (j joinedFuture) Done() bool {
	for _, f := range j {
		if !f.Done() {
			return false
		}
	}
	return true
}

func (j joinedFuture) Wait(ctx context.Context) error {
	for _, f := range j {
		err := f.Wait(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (j joinedFuture) CleanupFinished() {
	for _, f := range j {
		f.CleanupFinished()
	}
}

// Join combines futures into one that completes when all of them have. Nested joins
// are flattened and Ready placeholders dropped; joining nothing yields Ready().
func Join(futures ...Future) Future {
	var parts joinedFuture
	for _, f := range futures {
		if f == nil {
			continue
		}
		parts = append(parts, Parts(f)...)
	}

	switch len(parts) {
	case 0:
		return Ready()
	case 1:
		return parts[0]
	}
	return parts
}

// Parts returns the individual futures f is made of, so a backend can find the
// synchronization primitives a submission has to wait on
func Parts(f Future) []Future {
	switch v := f.(type) {
	case joinedFuture:
		return append([]Future(nil), v...)
	case readyFuture:
		return nil
	}
	return []Future{f}
}
