package objectgate

import (
	"context"
	"fmt"
)

func (s *service) Move(ctx context.Context, req MoveRequest) *MoveResult {
	subject, err := s.resolveSubject(ctx, req.Subject)
	if err != nil {
		return &MoveResult{
			Items:           []MoveItemResult{},
			OperationStatus: s.statusFor(&OperationError{Op: "resolve_identity", Err: err}),
		}
	}

	results := make([]MoveItemResult, len(req.Items))
	s.forEach(len(req.Items), func(i int) {
		results[i] = s.moveItem(ctx, req.Items[i], subject)
	})
	return &MoveResult{Items: results, OperationStatus: okStatus()}
}

// moveItem copies then deletes the source. A failed delete leaves both
// copies in place and is reported as the item's status.
func (s *service) moveItem(ctx context.Context, item MoveItem, subject *Subject) MoveItemResult {
	if srcBucket, srcKey, err := ParseCopySource(item.SourceObject); err == nil {
		key := item.Key
		if key == "" {
			key = srcKey
		}
		if srcBucket == item.Bucket && srcKey == key {
			err := fmt.Errorf("%w: source and destination are the same object", ErrInvalidArgument)
			return MoveItemResult{Status: s.statusFor(&OperationError{Op: "move", Bucket: item.Bucket, Key: key, Err: err})}
		}
	}

	copied := s.copyItem(ctx, CopyItem{
		Bucket:     item.Bucket,
		CopySource: item.SourceObject,
		Key:        item.Key,
		Meta:       item.Meta,
		Options:    item.Options,
	}, subject)
	if !copied.Status.OK() {
		return MoveItemResult{Status: copied.Status}
	}

	srcBucket, srcKey, _ := ParseCopySource(item.SourceObject)
	if st := s.deleteObject(ctx, srcBucket, srcKey, subject); !st.OK() {
		s.logger.Warn("Moved object left at source", "source", item.SourceObject,
			"bucket", copied.Payload.Bucket, "key", copied.Payload.Key, "code", st.Code)
		return MoveItemResult{Status: st}
	}

	return MoveItemResult{
		Payload: &MovePayload{
			Bucket:       copied.Payload.Bucket,
			Key:          copied.Payload.Key,
			SourceObject: item.SourceObject,
			Meta:         copied.Payload.Meta,
		},
		Status: okStatus(),
	}
}
