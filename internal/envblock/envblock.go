// Package envblock locates the calling process's and a thread's control
// blocks. Lookups never fail loudly: any problem yields address zero.
package envblock

import (
	"log/slog"
	"sync"
)

// slot resolves a platform entry point at most once, even under
// concurrent first use, and hands out the cached result afterwards.
type slot[F any] struct {
	once sync.Once
	fn   F
	ok   bool
}

func (s *slot[F]) get(name string, resolve func() (F, error)) (F, bool) {
	s.once.Do(func() {
		fn, err := resolve()
		if err != nil {
			slog.Debug("envblock: entry point unavailable", "name", name, "err", err)
			return
		}
		s.fn, s.ok = fn, true
	})
	return s.fn, s.ok
}

// ProcessBlock returns the address of the calling process's control block,
// or zero if it cannot be determined.
func ProcessBlock() uint64 { return processBlock() }

// ThreadBlock returns the address of the control block of thread tid, or of
// the calling thread when tid is zero. Zero means unavailable.
func ThreadBlock(tid uint32) uint64 { return threadBlock(tid) }
