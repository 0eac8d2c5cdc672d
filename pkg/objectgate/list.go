package objectgate

import (
	"context"

	"golang.org/x/exp/slices"
)

// loadObject heads bucket/key and returns its decoded envelope with the
// ACL merged back in from the side store.
func (s *service) loadObject(ctx context.Context, op, bucket, key string) (*ObjectHead, Envelope, error) {
	head, err := s.store.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, Envelope{}, &OperationError{Op: op, Bucket: bucket, Key: key, Err: err}
	}
	env, err := s.codec.Decode(head.Metadata)
	if err != nil {
		return nil, Envelope{}, &OperationError{Op: op, Bucket: bucket, Key: key, Err: err}
	}
	env.Meta, err = s.codec.FetchAndMergeACL(ctx, env.Meta, bucket, key)
	if err != nil {
		return nil, Envelope{}, &OperationError{Op: op, Bucket: bucket, Key: key, Err: err}
	}
	return head, env, nil
}

func (s *service) List(ctx context.Context, req ListRequest) *ListResult {
	buckets := s.buckets
	if req.Bucket != "" {
		if !s.validBucket(req.Bucket) {
			return &ListResult{
				Items:           []ListItem{},
				OperationStatus: s.statusFor(&OperationError{Op: "list", Bucket: req.Bucket, Err: ErrInvalidBucket}),
			}
		}
		buckets = []string{req.Bucket}
	}

	// With authorization on, visibility comes from a what-is-allowed query
	// over the target buckets. A nil scope means the answer is unconstrained.
	var allowed map[string]struct{}
	unscoped := false
	if s.authEnabled {
		resources := make([]Resource, len(buckets))
		for i, b := range buckets {
			resources[i] = Resource{Bucket: b}
		}
		d := s.authorizer.Decide(ctx, req.Subject, resources, ActionRead, ModeWhatIsAllowed)
		if !d.Permitted() {
			return &ListResult{Items: []ListItem{}, OperationStatus: denyStatus(d)}
		}
		if d.Scope == nil {
			unscoped = true
		} else {
			allowed = make(map[string]struct{}, len(d.Scope.OwnerInstances))
			for _, inst := range d.Scope.OwnerInstances {
				allowed[inst] = struct{}{}
			}
		}
	}

	items := []ListItem{}
	for _, bucket := range buckets {
		objects, err := s.store.ListObjects(ctx, bucket, req.Prefix, req.MaxKeys)
		if err != nil {
			return &ListResult{
				Items:           []ListItem{},
				OperationStatus: s.statusFor(&OperationError{Op: "list", Bucket: bucket, Err: err}),
			}
		}

		for _, obj := range objects {
			_, env, err := s.loadObject(ctx, "list", bucket, obj.Key)
			if err != nil {
				// Deleted between listing and head, or unreadable envelope
				s.logger.Warn("Skipping object in listing", "bucket", bucket, "key", obj.Key, "err", err)
				continue
			}

			owners := OwnerInstances(env.Meta.Owners)
			if s.authEnabled {
				if unscoped && !s.includeUnscoped {
					continue
				}
				if !unscoped && !intersects(owners, allowed) {
					continue
				}
			}
			if !matchFilter(req.Filter, owners) {
				continue
			}

			items = append(items, ListItem{
				Payload: &ObjectEntry{
					Name: obj.Key,
					URL:  s.objectURL(bucket, obj.Key),
					Meta: env.Meta,
				},
				Status: okStatus(),
			})
		}
	}

	return &ListResult{Items: items, OperationStatus: okStatus()}
}

// matchFilter applies an owner-instance equality filter. Other filters are
// not supported and match everything.
func matchFilter(f *Filter, owners []string) bool {
	if f == nil || f.Field != FilterFieldOwnerInstance || f.Operation != FilterEq {
		return true
	}
	return slices.Contains(owners, f.Value)
}
