package runner

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Result is what one submitted task produced.
type Result[T any] struct {
	Slot  int
	Value T
	Err   error
}

// Pool runs tasks on a fixed-size goroutine pool and keeps their results
// indexed by submission order.
type Pool[T any] struct {
	pool    *ants.Pool
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []Result[T]
}

func NewPool[T any](size int) (*Pool[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("runner.NewPool: size must be positive, got %d", size)
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("runner.NewPool: %w", err)
	}
	return &Pool[T]{pool: p}, nil
}

// Submit schedules task and returns its slot. A panic inside task becomes its error.
func (p *Pool[T]) Submit(task func() (T, error)) (int, error) {
	p.mu.Lock()
	slot := len(p.results)
	p.results = append(p.results, Result[T]{Slot: slot})
	p.mu.Unlock()

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		v, err := protect(task)
		p.mu.Lock()
		p.results[slot].Value = v
		p.results[slot].Err = err
		p.mu.Unlock()
	})
	if err != nil {
		p.wg.Done()
		p.mu.Lock()
		p.results[slot].Err = fmt.Errorf("runner.Pool.Submit: %w", err)
		p.mu.Unlock()
		return slot, err
	}
	return slot, nil
}

// Wait blocks until every submitted task returned, then lists results by slot.
func (p *Pool[T]) Wait() []Result[T] {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result[T], len(p.results))
	copy(out, p.results)
	return out
}

// Result reads one slot. Only meaningful after Wait.
func (p *Pool[T]) Result(slot int) (Result[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.results) {
		return Result[T]{}, false
	}
	return p.results[slot], true
}

func (p *Pool[T]) Running() int {
	return p.pool.Running()
}

func (p *Pool[T]) Release() {
	p.pool.Release()
}

func protect[T any](task func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task()
}
