package objectgate

import (
	"context"
	"fmt"
)

func (s *service) Copy(ctx context.Context, req CopyRequest) *CopyResult {
	subject, err := s.resolveSubject(ctx, req.Subject)
	if err != nil {
		return &CopyResult{
			Items:           []CopyItemResult{},
			OperationStatus: s.statusFor(&OperationError{Op: "resolve_identity", Err: err}),
		}
	}

	results := make([]CopyItemResult, len(req.Items))
	s.forEach(len(req.Items), func(i int) {
		results[i] = s.copyItem(ctx, req.Items[i], subject)
	})
	return &CopyResult{Items: results, OperationStatus: okStatus()}
}

func (s *service) copyItem(ctx context.Context, item CopyItem, subject *Subject) CopyItemResult {
	fail := func(err error) CopyItemResult {
		return CopyItemResult{Status: s.statusFor(err)}
	}

	if item.CopySource == "" {
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: item.Key,
			Err: fmt.Errorf("%w: copy source missing", ErrInvalidArgument)})
	}
	srcBucket, srcKey, err := ParseCopySource(item.CopySource)
	if err != nil {
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: item.Key, Err: err})
	}
	key := item.Key
	if key == "" {
		key = srcKey
	}
	if !s.validBucket(item.Bucket) {
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: key, Err: ErrInvalidBucket})
	}
	if !s.validBucket(srcBucket) {
		return fail(&OperationError{Op: "copy", Bucket: srcBucket, Key: srcKey, Err: ErrInvalidBucket})
	}

	head, src, err := s.loadObject(ctx, "copy", srcBucket, srcKey)
	if err != nil {
		return fail(err)
	}

	srcMeta := src.Meta
	if st, ok := s.decide(ctx, restoreScope(subject, srcMeta.Owners), []Resource{{
		Bucket:    srcBucket,
		Key:       srcKey,
		Meta:      &srcMeta,
		Data:      src.Data,
		SubjectID: src.WriterSubjectID,
	}}, ActionRead); !ok {
		return CopyItemResult{Status: st}
	}

	destScope := subjectScope(subject)
	var callerACL []Attribute
	if item.Meta != nil {
		callerACL = cloneAttributes(item.Meta.ACL)
	}
	if st, ok := s.decide(ctx, subject.WithScope(destScope), []Resource{{
		Bucket: item.Bucket,
		Key:    key,
		Meta:   &Meta{ACL: callerACL},
	}}, ActionCreate); !ok {
		return CopyItemResult{Status: st}
	}

	meta := item.Meta.Clone()
	if len(meta.Owners) == 0 {
		if destScope != "" {
			meta.Owners = []Attribute{NewOwner(destScope)}
		} else {
			meta.Owners = cloneAttributes(srcMeta.Owners)
		}
	}
	if meta.Created.IsZero() {
		meta.Created = srcMeta.Created
	}
	if meta.CreatedBy == "" {
		meta.CreatedBy = srcMeta.CreatedBy
	}
	meta.Modified = s.now()
	meta.ModifiedBy = subject.ID
	if len(meta.ACL) == 0 {
		meta.ACL = cloneAttributes(srcMeta.ACL)
	}

	data := src.Data
	if len(item.Data) > 0 {
		data = item.Data
	}
	writer := subject.ID
	if writer == "" {
		writer = src.WriterSubjectID
	}

	input := CopyInput{
		Bucket:          item.Bucket,
		Key:             key,
		CopySource:      EncodeCopySource(item.CopySource),
		ReplaceMetadata: true,
	}

	var (
		options *Options
		srcTags []Tag
	)
	if !item.Options.IsZero() {
		options = item.Options
		input.Headers = options.headers()
		input.ReplaceTagging = true
		input.Tagging = EncodeTagging(options.Tags)
	} else {
		srcTags, err = s.store.GetObjectTagging(ctx, srcBucket, srcKey)
		if err != nil {
			return fail(&OperationError{Op: "copy_tagging", Bucket: srcBucket, Key: srcKey,
				Err: fmt.Errorf("%w: tagging: %v", ErrUpstream, err)})
		}
		input.Headers = head.Headers
		options = optionsFrom(head.Headers, srcTags)
	}

	input.Metadata, err = s.codec.Encode(Envelope{Meta: meta, Data: data, WriterSubjectID: writer})
	if err != nil {
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: key, Err: err})
	}
	_, aclWrite, err := s.codec.ExtractAndStoreACL(ctx, meta, item.Bucket, key)
	if err != nil {
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: key, Err: err})
	}

	if _, err := s.store.CopyObject(ctx, input); err != nil {
		s.revertACL(ctx, aclWrite, item.Bucket, key)
		return fail(&OperationError{Op: "copy", Bucket: item.Bucket, Key: key, Err: err})
	}
	if len(srcTags) > 0 {
		if err := s.store.PutObjectTagging(ctx, item.Bucket, key, srcTags); err != nil {
			return fail(&OperationError{Op: "copy_tagging", Bucket: item.Bucket, Key: key, Err: err})
		}
	}

	return CopyItemResult{
		Payload: &CopyPayload{
			Bucket:     item.Bucket,
			CopySource: item.CopySource,
			Key:        key,
			Meta:       meta,
			Options:    options,
		},
		Status: okStatus(),
	}
}
