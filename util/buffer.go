package util

import (
	"fmt"
	"math"
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrBufferOverflow is returned when a buffer cannot grow to the requested size.
var ErrBufferOverflow = errors.NewKind("cannot grow buffer to %d bytes: %s")

const initialBufferSize = 256

var bufferPool = sync.Pool{
	New: func() any {
		return &Buffer{data: make([]byte, 0, initialBufferSize)}
	},
}

// Buffer is an append-only byte accumulator.
// When an append does not fit, the storage is reallocated to twice the required size.
// Buffers are taken from a pool with NewBuffer and must be given back with Release.
type Buffer struct {
	data  []byte
	limit int // 0 means unlimited
}

// NewBuffer returns an empty buffer from the pool.
// If limit is positive, the buffer refuses to grow beyond limit bytes.
func NewBuffer(limit int) *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.data = b.data[:0]
	b.limit = limit
	return b
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the capacity of the underlying storage.
func (b *Buffer) Cap() int { return cap(b.data) }

// Clear resets the buffer length to zero without releasing the storage.
func (b *Buffer) Clear() { b.data = b.data[:0] }

// Bytes returns the buffer content. The slice is only valid until the next modification.
func (b *Buffer) Bytes() []byte { return b.data }

// String returns a copy of the buffer content.
func (b *Buffer) String() string { return string(b.data) }

// AppendString appends s to the buffer.
func (b *Buffer) AppendString(s string) error {
	if err := b.ensure(len(s)); err != nil {
		return err
	}

	b.data = append(b.data, s...)
	return nil
}

// AppendByte appends a single byte to the buffer.
func (b *Buffer) AppendByte(c byte) error {
	if err := b.ensure(1); err != nil {
		return err
	}

	b.data = append(b.data, c)
	return nil
}

// AppendBuffer appends the content of another buffer.
func (b *Buffer) AppendBuffer(o *Buffer) error {
	if err := b.ensure(len(o.data)); err != nil {
		return err
	}

	b.data = append(b.data, o.data...)
	return nil
}

// Release gives the storage back to the pool. The buffer must not be used afterwards.
// Releasing a nil buffer is a no-op.
func (b *Buffer) Release() {
	if b == nil {
		return
	}

	// do not keep huge buffers alive in the pool
	if cap(b.data) > 64*1024 {
		b.data = make([]byte, 0, initialBufferSize)
	}

	b.data = b.data[:0]
	b.limit = 0
	bufferPool.Put(b)
}

// ensure makes room for n more bytes.
func (b *Buffer) ensure(n int) error {
	length := len(b.data)
	if length > math.MaxInt-n {
		return ErrBufferOverflow.New(uint64(length)+uint64(n), "size overflows int")
	}

	need := length + n
	if b.limit > 0 && need > b.limit {
		return ErrBufferOverflow.New(need, fmt.Sprintf("limit is %d bytes", b.limit))
	}

	if need <= cap(b.data) {
		return nil
	}

	size := need
	if need <= math.MaxInt/2 {
		size = 2 * need
	}
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}

	return b.grow(size)
}

func (b *Buffer) grow(size int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrBufferOverflow.New(size, fmt.Sprint(r))
		}
	}()

	data := make([]byte, len(b.data), size)
	copy(data, b.data)
	b.data = data

	return nil
}
