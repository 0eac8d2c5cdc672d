package objectgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
)

func (s *service) Get(ctx context.Context, req GetRequest) iter.Seq[*GetEvent] {
	return func(yield func(*GetEvent) bool) {
		template, body, status := s.openObject(ctx, req)
		if !status.OK() {
			yield(&GetEvent{Status: status})
			return
		}
		defer body.Close()

		sent := false
		for {
			buf := make([]byte, s.chunkSize)
			n, err := io.ReadFull(body, buf)
			if n > 0 {
				chunk := *template
				chunk.Object = buf[:n]
				if !yield(&GetEvent{Payload: &chunk, Status: okStatus()}) {
					return
				}
				sent = true
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if err != nil {
				yield(&GetEvent{Status: s.statusFor(&OperationError{
					Op: "get", Bucket: req.Bucket, Key: req.Key,
					Err: fmt.Errorf("%w: read: %v", ErrUpstream, err),
				})})
				return
			}
		}

		if !sent {
			chunk := *template
			chunk.Object = []byte{}
			if !yield(&GetEvent{Payload: &chunk, Status: okStatus()}) {
				return
			}
		}

		s.notify(ctx, EventObjectDownloadRequested, map[string]any{
			"bucket":       template.Bucket,
			"key":          template.Key,
			"options":      template.Options,
			"meta":         template.Meta,
			"data":         template.Data,
			"subject_id":   template.WriterSubjectID,
			"requested_by": subjectID(req.Subject),
		})
	}
}

// openObject runs the checks that precede streaming and opens the read
// stream. The returned chunk carries everything but the bytes.
func (s *service) openObject(ctx context.Context, req GetRequest) (*ObjectChunk, io.ReadCloser, Status) {
	if err := s.checkTarget("get", req.Bucket, req.Key); err != nil {
		return nil, nil, s.statusFor(err)
	}

	head, env, err := s.loadObject(ctx, "get", req.Bucket, req.Key)
	if err != nil {
		return nil, nil, s.statusFor(err)
	}

	tags, err := s.store.GetObjectTagging(ctx, req.Bucket, req.Key)
	if err != nil {
		// A missing tag set is an operation failure, not a missing object
		return nil, nil, s.statusFor(&OperationError{Op: "get_tagging", Bucket: req.Bucket, Key: req.Key,
			Err: fmt.Errorf("%w: tagging: %v", ErrUpstream, err)})
	}

	subject := restoreScope(req.Subject, env.Meta.Owners)
	meta := env.Meta
	if st, ok := s.decide(ctx, subject, []Resource{{
		Bucket:    req.Bucket,
		Key:       req.Key,
		Meta:      &meta,
		Data:      env.Data,
		SubjectID: env.WriterSubjectID,
	}}, ActionRead); !ok {
		return nil, nil, st
	}

	body, err := s.store.GetObject(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, nil, s.statusFor(&OperationError{Op: "get", Bucket: req.Bucket, Key: req.Key, Err: err})
	}

	options := optionsFrom(head.Headers, tags)
	options.ContentDisposition = dispositionHint(options.ContentDisposition, req.Download, req.Key)

	return &ObjectChunk{
		Bucket:          req.Bucket,
		Key:             req.Key,
		URL:             s.objectURL(req.Bucket, req.Key),
		Meta:            env.Meta,
		Data:            env.Data,
		Options:         options,
		WriterSubjectID: env.WriterSubjectID,
	}, body, okStatus()
}

// dispositionHint keeps a stored disposition unless a download asks for an
// attachment and the stored value is not one.
func dispositionHint(stored string, download bool, key string) string {
	if download {
		if strings.HasPrefix(strings.ToLower(stored), "attachment") {
			return stored
		}
		return `attachment; filename="` + asciiFilename(path.Base(key)) + `"`
	}
	if stored == "" {
		return "inline"
	}
	return stored
}

func subjectID(s *Subject) string {
	if s == nil {
		return ""
	}
	return s.ID
}
