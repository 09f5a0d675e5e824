package repository

import "sync"

// faultHook lets tests make in-memory stores fail specific operations.
type faultHook struct {
	mu sync.Mutex
	fn func(op string) error
}

// InjectFault installs fn; it is consulted before every operation and a
// non-nil return aborts that operation. Passing nil removes the hook.
func (h *faultHook) InjectFault(fn func(op string) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = fn
}

func (h *faultHook) check(op string) error {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(op)
}
