package bufpool

import (
	"sync"
)

// Pool hands out chunk buffers of one fixed size.
// Buffers are kept as *[]byte so Put does not allocate.
type Pool struct {
	pool    sync.Pool
	bufSize int
}

// New creates a pool whose buffers are exactly bufSize bytes long.
func New(bufSize int) *Pool {
	if bufSize <= 0 {
		panic("bufpool: bufSize must be positive")
	}
	p := &Pool{bufSize: bufSize}
	p.pool.New = func() any {
		buf := make([]byte, bufSize)
		return &buf
	}
	return p
}

// Get returns a buffer of BufSize bytes. Contents are not zeroed.
func (p *Pool) Get() *[]byte {
	bp := p.pool.Get().(*[]byte)
	if cap(*bp) < p.bufSize {
		buf := make([]byte, p.bufSize)
		return &buf
	}
	*bp = (*bp)[:p.bufSize]
	return bp
}

// Put returns a buffer obtained from Get. Undersized buffers are dropped.
func (p *Pool) Put(bp *[]byte) {
	if bp == nil || cap(*bp) < p.bufSize {
		return
	}
	*bp = (*bp)[:cap(*bp)]
	p.pool.Put(bp)
}

// BufSize returns the size of buffers in this pool.
func (p *Pool) BufSize() int {
	return p.bufSize
}

var pools sync.Map // map[int]*Pool

// For returns the shared pool for size, creating it on first use.
// Copiers running with the same chunk size share buffers across jobs.
func For(size int) *Pool {
	if pool, ok := pools.Load(size); ok {
		return pool.(*Pool)
	}
	actual, _ := pools.LoadOrStore(size, New(size))
	return actual.(*Pool)
}
