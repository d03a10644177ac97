// Package bytesource abstracts random-access reads over the bytes being
// indexed, so the framer and index layers work identically against
// in-memory buffers, files, and cached remote-style sources.
package bytesource

import (
	"container/list"
	"io"
	"os"
	"sync"

	"github.com/framelens/framelens/internal/bitio"
	"github.com/framelens/framelens/internal/limits"
)

// Source provides bounded random-access reads. Implementations must be
// safe for concurrent use.
type Source interface {
	// ReadRange returns n bytes starting at off. A read extending past the
	// end of the source fails with an EOF error carrying off.
	ReadRange(off int64, n int) ([]byte, error)
	// Size returns the total length of the source in bytes.
	Size() int64
}

// Bytes is an in-memory Source.
type Bytes struct {
	data []byte
}

// NewBytes wraps data as a Source. The slice is not copied.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

func (b *Bytes) ReadRange(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(b.data)) {
		return nil, &bitio.EOFError{Offset: off}
	}
	return b.data[off : off+int64(n)], nil
}

func (b *Bytes) Size() int64 {
	return int64(len(b.data))
}

// File is a Source backed by an os.File using ReadAt, so concurrent
// readers never contend on a shared file position.
type File struct {
	f    *os.File
	size int64
}

// Open opens path for indexing.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, size: st.Size()}, nil
}

func (s *File) ReadRange(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > s.size {
		return nil, &bitio.EOFError{Offset: off}
	}
	buf := make([]byte, n)
	if _, err := s.f.ReadAt(buf, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &bitio.EOFError{Offset: off}
		}
		return nil, err
	}
	return buf, nil
}

func (s *File) Size() int64 {
	return s.size
}

// Close closes the underlying file.
func (s *File) Close() error {
	return s.f.Close()
}

const cacheChunkSize = 64 * 1024

// Caching wraps another Source with a chunk-aligned LRU cache whose total
// footprint is bounded by Limits.MaxBufferSize. It serves repeated window
// reads around a focus point without re-reading the backing source.
type Caching struct {
	src       Source
	maxChunks int

	mu     sync.Mutex
	chunks map[int64]*list.Element
	lru    *list.List
}

type cacheEntry struct {
	chunk int64
	data  []byte
}

// NewCaching wraps src. At least one chunk is always cached.
func NewCaching(src Source, lim limits.Limits) *Caching {
	maxChunks := int(lim.MaxBufferSize / cacheChunkSize)
	if maxChunks < 1 {
		maxChunks = 1
	}
	return &Caching{
		src:       src,
		maxChunks: maxChunks,
		chunks:    make(map[int64]*list.Element),
		lru:       list.New(),
	}
}

func (c *Caching) Size() int64 {
	return c.src.Size()
}

func (c *Caching) ReadRange(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > c.src.Size() {
		return nil, &bitio.EOFError{Offset: off}
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, 0, n)
	pos := off
	remaining := n
	for remaining > 0 {
		chunk := pos / cacheChunkSize
		data, err := c.chunkData(chunk)
		if err != nil {
			return nil, err
		}
		lo := int(pos - chunk*cacheChunkSize)
		take := len(data) - lo
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			return nil, &bitio.EOFError{Offset: pos}
		}
		out = append(out, data[lo:lo+take]...)
		pos += int64(take)
		remaining -= take
	}
	return out, nil
}

func (c *Caching) chunkData(chunk int64) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.chunks[chunk]; ok {
		c.lru.MoveToFront(el)
		data := el.Value.(*cacheEntry).data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	start := chunk * cacheChunkSize
	n := cacheChunkSize
	if start+int64(n) > c.src.Size() {
		n = int(c.src.Size() - start)
	}
	data, err := c.src.ReadRange(start, n)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.chunks[chunk]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*cacheEntry).data, nil
	}
	el := c.lru.PushFront(&cacheEntry{chunk: chunk, data: data})
	c.chunks[chunk] = el
	for c.lru.Len() > c.maxChunks {
		back := c.lru.Back()
		c.lru.Remove(back)
		delete(c.chunks, back.Value.(*cacheEntry).chunk)
	}
	return data, nil
}
