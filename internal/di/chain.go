package di

import (
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/xraph/conductor/internal/errors"
)

// goid returns the current goroutine ID.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(field, 10, 64)
	return id
}

// chains tracks resolutions in flight. A Resolve issued from inside a
// producer continues the stack of the goroutine that runs it, and a
// goroutine about to block on a singleton build checks that the holder is
// not, directly or transitively, waiting on it.
type chains struct {
	mu      sync.Mutex
	stacks  map[int64]*stack
	owners  map[*definition]int64
	waiting map[int64]*definition
}

func newChains() *chains {
	return &chains{
		stacks:  make(map[int64]*stack),
		owners:  make(map[*definition]int64),
		waiting: make(map[int64]*definition),
	}
}

// enter returns the stack of the calling goroutine. The returned func ends
// the chain when the call that started it returns.
func (c *chains) enter() (*stack, func()) {
	id := goid()

	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.stacks[id]; ok {
		return st, func() {}
	}
	st := &stack{gid: id}
	c.stacks[id] = st
	return st, func() {
		c.mu.Lock()
		delete(c.stacks, id)
		c.mu.Unlock()
	}
}

// acquire takes the build lock of def for the goroutine owning st. It fails
// instead of blocking when the current holder waits, through any number of
// goroutines, on a build st already holds.
func (c *chains) acquire(st *stack, def *definition) error {
	c.mu.Lock()
	if def.build.TryLock() {
		c.owners[def] = st.gid
		c.mu.Unlock()
		return nil
	}

	path := []string{def.name}
	owner, held := c.owners[def]
	for range len(c.owners) {
		if !held {
			break
		}
		if owner == st.gid {
			c.mu.Unlock()
			return errors.ErrCircularDependency(append(st.names(), path...))
		}
		next, waits := c.waiting[owner]
		if !waits {
			break
		}
		path = append(path, next.name)
		owner, held = c.owners[next]
	}

	c.waiting[st.gid] = def
	c.mu.Unlock()

	def.build.Lock()

	c.mu.Lock()
	delete(c.waiting, st.gid)
	c.owners[def] = st.gid
	c.mu.Unlock()
	return nil
}

func (c *chains) release(def *definition) {
	c.mu.Lock()
	delete(c.owners, def)
	c.mu.Unlock()
	def.build.Unlock()
}
