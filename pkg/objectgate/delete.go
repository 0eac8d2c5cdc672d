package objectgate

import (
	"context"
	"fmt"
)

func (s *service) Delete(ctx context.Context, req DeleteRequest) *DeleteResult {
	return &DeleteResult{OperationStatus: s.deleteObject(ctx, req.Bucket, req.Key, req.Subject)}
}

func (s *service) deleteObject(ctx context.Context, bucket, key string, subject *Subject) Status {
	if err := s.checkTarget("delete", bucket, key); err != nil {
		return s.statusFor(err)
	}

	_, env, err := s.loadObject(ctx, "delete", bucket, key)
	if err != nil {
		return s.statusFor(err)
	}

	meta := env.Meta
	if st, ok := s.decide(ctx, restoreScope(subject, meta.Owners), []Resource{{
		Bucket:    bucket,
		Key:       key,
		Meta:      &meta,
		Data:      env.Data,
		SubjectID: env.WriterSubjectID,
	}}, ActionDelete); !ok {
		return st
	}

	if err := s.store.DeleteObject(ctx, bucket, key); err != nil {
		s.logger.Error("Failed to delete object", "bucket", bucket, "key", key, "err", err)
		return Status{Code: CodeInternal, Message: fmt.Sprintf("delete %s/%s: %v", bucket, key, err)}
	}

	if err := s.codec.DeleteACL(ctx, bucket, key); err != nil {
		s.logger.Warn("Failed to delete acl", "bucket", bucket, "key", key, "err", err)
	}
	return okStatus()
}
