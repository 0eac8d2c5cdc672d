package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/objectgate/pkg/objectgate"
)

type object struct {
	data         []byte
	metadata     map[string]string
	headers      objectgate.ContentHeaders
	tags         []objectgate.Tag
	etag         string
	lastModified time.Time
}

// Backend is an in-memory implementation of the objectgate.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		buckets: make(map[string]map[string]*object),
	}
}

// CreateBucket creates bucket if it does not exist yet
func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.buckets[bucket]; !exists {
		b.buckets[bucket] = make(map[string]*object)
	}
	return nil
}

// ListObjects lists keys under prefix in lexical order
func (b *Backend) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int32) ([]objectgate.ObjectSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objects, exists := b.buckets[bucket]
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", bucket, objectgate.ErrNotFound)
	}

	var out []objectgate.ObjectSummary
	for key, obj := range objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, objectgate.ObjectSummary{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if maxKeys > 0 && len(out) > int(maxKeys) {
		out = out[:maxKeys]
	}
	return out, nil
}

func (b *Backend) lookup(bucket, key string) (*object, error) {
	objects, exists := b.buckets[bucket]
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", bucket, objectgate.ErrNotFound)
	}
	obj, exists := objects[key]
	if !exists {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, objectgate.ErrNotFound)
	}
	return obj, nil
}

// HeadObject retrieves metadata and content headers
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (*objectgate.ObjectHead, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return &objectgate.ObjectHead{
		Metadata:      maps.Clone(obj.metadata),
		Headers:       obj.headers,
		ContentLength: int64(len(obj.data)),
		ETag:          obj.etag,
		LastModified:  obj.lastModified,
	}, nil
}

// GetObject opens a reader over a snapshot of the object
func (b *Backend) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// GetObjectTagging returns the tag set
func (b *Backend) GetObjectTagging(ctx context.Context, bucket, key string) ([]objectgate.Tag, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return append([]objectgate.Tag(nil), obj.tags...), nil
}

// PutObjectTagging replaces the tag set
func (b *Backend) PutObjectTagging(ctx context.Context, bucket, key string, tags []objectgate.Tag) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, err := b.lookup(bucket, key)
	if err != nil {
		return err
	}
	obj.tags = append([]objectgate.Tag(nil), tags...)
	return nil
}

// Upload reads the whole body before committing, so a failing body leaves
// no object behind.
func (b *Backend) Upload(ctx context.Context, input objectgate.UploadInput) (*objectgate.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tags, err := objectgate.DecodeTagging(input.Tagging)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	objects, exists := b.buckets[input.Bucket]
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", input.Bucket, objectgate.ErrNotFound)
	}
	obj := &object{
		data:         data,
		metadata:     maps.Clone(input.Metadata),
		headers:      input.Headers,
		tags:         tags,
		etag:         etag(data),
		lastModified: time.Now().UTC(),
	}
	objects[input.Key] = obj
	return &objectgate.UploadOutput{ETag: obj.etag}, nil
}

// CopyObject performs a copy within the backend
func (b *Backend) CopyObject(ctx context.Context, input objectgate.CopyInput) (*objectgate.CopyOutput, error) {
	source, err := url.PathUnescape(input.CopySource)
	if err != nil {
		return nil, fmt.Errorf("%w: copy source: %v", objectgate.ErrInvalidKey, err)
	}
	srcBucket, srcKey, err := objectgate.ParseCopySource(source)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := b.lookup(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	objects, exists := b.buckets[input.Bucket]
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", input.Bucket, objectgate.ErrNotFound)
	}

	dst := &object{
		data:         src.data,
		metadata:     maps.Clone(src.metadata),
		headers:      src.headers,
		tags:         append([]objectgate.Tag(nil), src.tags...),
		etag:         src.etag,
		lastModified: time.Now().UTC(),
	}
	if input.ReplaceMetadata {
		dst.metadata = maps.Clone(input.Metadata)
		dst.headers = input.Headers
	}
	if input.ReplaceTagging {
		if dst.tags, err = objectgate.DecodeTagging(input.Tagging); err != nil {
			return nil, err
		}
	}
	objects[input.Key] = dst
	return &objectgate.CopyOutput{ETag: dst.etag, LastModified: dst.lastModified}, nil
}

// DeleteObject removes the object
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.lookup(bucket, key); err != nil {
		return err
	}
	delete(b.buckets[bucket], key)
	return nil
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
