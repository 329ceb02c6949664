// Package preview implements PreviewBufferStore and PreviewEncoder: the
// chunked-upload registry for large RGBA preview frames and the one-shot
// external PNG encode that turns a finished buffer into a preview image.
package preview

import (
	"fmt"
	"sync"
	"time"
)

// TTL is how long a preview upload may sit idle before it is pruned.
const TTL = 30 * time.Second

// MaxDimension is the longest side a rendered preview image is scaled to.
const MaxDimension = 1280

// Buffer is one in-progress chunked RGBA upload.
type Buffer struct {
	Width       int
	Height      int
	ExpectedLen int
	Data        []byte
	lastUpdated time.Time
}

// Store is a concurrent map from preview id to Buffer, guarded by a
// single mutex. At most one in-flight buffer exists per id.
type Store struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{buffers: make(map[string]*Buffer)}
}

// Start creates a fresh buffer for id sized to width*height*4 bytes,
// pruning stale entries first. Fails if id already has an upload in
// flight.
func (s *Store) Start(id string, width, height int) error {
	if width < 2 || height < 2 {
		return fmt.Errorf("preview dimensions are invalid")
	}
	expected := width * height * 4

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneStale(time.Now())
	if _, exists := s.buffers[id]; exists {
		return fmt.Errorf("preview upload already exists")
	}
	s.buffers[id] = &Buffer{
		Width:       width,
		Height:      height,
		ExpectedLen: expected,
		Data:        make([]byte, 0, expected),
		lastUpdated: time.Now(),
	}
	return nil
}

// Append extends id's buffer with chunk, failing if id is unknown or the
// append would overflow the expected length (the entry is removed on
// overflow).
func (s *Store) Append(id string, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[id]
	if !ok {
		return fmt.Errorf("preview upload not found")
	}
	if len(buf.Data)+len(chunk) > buf.ExpectedLen {
		delete(s.buffers, id)
		return fmt.Errorf("preview buffer overflow")
	}
	buf.Data = append(buf.Data, chunk...)
	buf.lastUpdated = time.Now()
	return nil
}

// Finish removes and returns id's buffer. The caller should verify
// len(Data) == ExpectedLen before use.
func (s *Store) Finish(id string) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[id]
	if !ok {
		return nil, fmt.Errorf("preview upload not found")
	}
	delete(s.buffers, id)
	return buf, nil
}

// Discard removes id's buffer silently, if present.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, id)
}

// pruneStale removes buffers not updated within TTL. Must be called with
// mu held.
func (s *Store) pruneStale(now time.Time) {
	for id, buf := range s.buffers {
		if now.Sub(buf.lastUpdated) > TTL {
			delete(s.buffers, id)
		}
	}
}
