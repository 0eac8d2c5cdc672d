package objectgate

import (
	"context"
	"errors"
	"fmt"
	"io"
)

func (s *service) Put(ctx context.Context, stream ChunkReader) *PutResult {
	fail := func(err error) *PutResult {
		return &PutResult{OperationStatus: s.statusFor(err)}
	}

	first, err := stream.Recv()
	if errors.Is(err, io.EOF) || (err == nil && first == nil) {
		return fail(&OperationError{Op: "put", Err: fmt.Errorf("%w: empty upload stream", ErrInvalidArgument)})
	}
	if err != nil {
		return fail(&OperationError{Op: "put", Err: fmt.Errorf("%w: upload stream: %v", ErrUpstream, err)})
	}

	bucket, key := first.Bucket, first.Key
	if !s.validBucket(bucket) {
		return fail(&OperationError{Op: "put", Bucket: bucket, Key: key, Err: ErrInvalidBucket})
	}
	if key == "" {
		key = s.keyGen.GenerateKey(bucket, first.Options)
	}

	subject, err := s.resolveSubject(ctx, first.Subject)
	if err != nil {
		return fail(&OperationError{Op: "resolve_identity", Bucket: bucket, Key: key, Err: err})
	}

	meta := first.Meta.Clone()
	if len(meta.Owners) == 0 && subject.Scope != "" {
		meta.Owners = []Attribute{NewOwner(subject.Scope)}
	}
	now := s.now()
	if meta.Created.IsZero() {
		meta.Created = now
	}
	meta.Modified = now
	meta.ModifiedBy = subject.ID
	if meta.CreatedBy == "" {
		meta.CreatedBy = subject.ID
	}

	if st, ok := s.decide(ctx, subject, []Resource{{
		Bucket:    bucket,
		Key:       key,
		Meta:      &meta,
		Data:      first.Data,
		SubjectID: subject.ID,
	}}, ActionCreate); !ok {
		return &PutResult{OperationStatus: st}
	}

	metadata, err := s.codec.Encode(Envelope{Meta: meta, Data: first.Data, WriterSubjectID: subject.ID})
	if err != nil {
		return fail(&OperationError{Op: "put", Bucket: bucket, Key: key, Err: err})
	}
	_, aclWrite, err := s.codec.ExtractAndStoreACL(ctx, meta, bucket, key)
	if err != nil {
		return fail(&OperationError{Op: "put", Bucket: bucket, Key: key, Err: err})
	}

	var tags []Tag
	if first.Options != nil {
		tags = first.Options.Tags
	}

	body := &chunkBody{stream: stream, buf: first.Object}
	out, err := s.store.Upload(ctx, UploadInput{
		Bucket:   bucket,
		Key:      key,
		Body:     body,
		Metadata: metadata,
		Headers:  first.Options.headers(),
		Tagging:  EncodeTagging(tags),
	})
	if err != nil {
		s.revertACL(ctx, aclWrite, bucket, key)
		return fail(&OperationError{Op: "upload", Bucket: bucket, Key: key, Err: err})
	}

	url := out.Location
	if url == "" {
		url = s.objectURL(bucket, key)
	}

	s.notify(ctx, EventObjectUploaded, map[string]any{
		"bucket":     bucket,
		"key":        key,
		"metadata":   metadata,
		"subject_id": subject.ID,
	})

	return &PutResult{
		Payload: &PutPayload{
			Key:    key,
			Bucket: bucket,
			URL:    url,
			Meta:   meta,
			Tags:   tags,
			Length: body.n,
		},
		OperationStatus: okStatus(),
	}
}

// chunkBody turns the remaining chunk stream into an io.Reader so the upload
// can forward bytes as they arrive. Bucket and key on later chunks are ignored.
type chunkBody struct {
	stream ChunkReader
	buf    []byte
	n      int64
	done   bool
}

func (b *chunkBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.done {
			return 0, io.EOF
		}
		chunk, err := b.stream.Recv()
		if errors.Is(err, io.EOF) {
			b.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("%w: upload stream aborted: %v", ErrUpstream, err)
		}
		if chunk != nil {
			b.buf = chunk.Object
		}
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	b.n += int64(n)
	return n, nil
}
