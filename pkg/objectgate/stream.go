package objectgate

import (
	"errors"
	"io"
)

// readerStream feeds an io.Reader to Put in fixed-size chunks.
type readerStream struct {
	head *PutChunk
	body io.Reader
	size int
	done bool
}

// NewReaderStream returns a ChunkReader that sends head first, carrying the
// first size bytes of body, then the rest of body in size-byte chunks. The
// head is delivered even when body is empty.
func NewReaderStream(head *PutChunk, body io.Reader, size int) ChunkReader {
	if head == nil {
		head = &PutChunk{}
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerStream{head: head, body: body, size: size}
}

func (s *readerStream) Recv() (*PutChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.body, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		if n == 0 && s.head == nil {
			return nil, io.EOF
		}
	case err != nil:
		return nil, err
	}

	if s.head != nil {
		chunk := s.head
		s.head = nil
		chunk.Object = buf[:n]
		return chunk, nil
	}
	return &PutChunk{Object: buf[:n]}, nil
}
