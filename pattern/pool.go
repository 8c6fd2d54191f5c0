// Package pattern caches compiled selector patterns keyed by expression and flags.
//
// A Pool may evict entries silently once it grows past its bound. Callers must
// not rely on an entry staying cached, only on Get returning a correctly
// compiled value for the pair they asked for.
package pattern

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
	"github.com/pkg/errors"
)

// DefaultMaxEntries 缓存默认容量
const DefaultMaxEntries = 512

// CompileFunc prepares expr for repeated use.
type CompileFunc[T any] func(expr string, flags int) (T, error)

// Key identifies one compiled pattern.
type Key struct {
	Expr  string
	Flags int
}

func (k Key) String() string {
	return strconv.Itoa(k.Flags) + "\x00" + k.Expr
}

// CompileError is returned when an expression can't be compiled. It is never cached.
type CompileError struct {
	Key
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile pattern %q (flags %d): %v", e.Expr, e.Flags, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Pool is a size-bounded LRU of compiled patterns, safe for concurrent use.
type Pool[T any] struct {
	mu      sync.Mutex
	cache   *lru.Cache
	group   singleflight.Group
	compile CompileFunc[T]
}

// NewPool returns a pool holding at most maxEntries compiled patterns.
// A non-positive maxEntries falls back to DefaultMaxEntries.
func NewPool[T any](maxEntries int, compile CompileFunc[T]) *Pool[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Pool[T]{
		cache:   lru.New(maxEntries),
		compile: compile,
	}
}

// Get 先从池中查找表达式对应的编译结果，找不到则编译并入池
func (p *Pool[T]) Get(expr string, flags int) (T, error) {
	key := Key{Expr: expr, Flags: flags}
	if v, ok := p.lookup(key); ok {
		return v, nil
	}
	// 同一个 key 的并发编译只执行一次
	v, err := p.group.Do(key.String(), func() (interface{}, error) {
		if v, ok := p.lookup(key); ok {
			return v, nil
		}
		compiled, err := p.compile(expr, flags)
		if err != nil {
			return nil, &CompileError{Key: key, Err: errors.WithStack(err)}
		}
		return p.store(key, compiled), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Remove evicts the entry for (expr, flags) and returns it if it was present.
func (p *Pool[T]) Remove(expr string, flags int) (T, bool) {
	key := Key{Expr: expr, Flags: flags}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cache.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	p.cache.Remove(key)
	return v.(T), true
}

// Clear drops every entry.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	p.cache.Clear()
	p.mu.Unlock()
}

// Len reports the number of cached patterns.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

func (p *Pool[T]) lookup(key Key) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cache.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// store keeps an entry inserted by a racing caller so every caller sees one instance.
func (p *Pool[T]) store(key Key, compiled T) T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.cache.Get(key); ok {
		return v.(T)
	}
	p.cache.Add(key, compiled)
	return compiled
}
