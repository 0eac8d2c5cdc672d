package objectgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultURLPrefix is prepended to bucket/key when forming object URLs
	DefaultURLPrefix = "//"
	// DefaultChunkSize is the size of chunks yielded by Get
	DefaultChunkSize = 64 * 1024
	// DefaultConcurrency bounds per-item parallelism in Copy and Move
	DefaultConcurrency = 4
	// DefaultEventTopic is the topic notifications are emitted on
	DefaultEventTopic = "io.objectgate.object"

	EventObjectUploaded          = "objectUploaded"
	EventObjectDownloadRequested = "objectDownloadRequested"
)

// KeyGenerator picks a key for uploads that arrive without one.
type KeyGenerator interface {
	GenerateKey(bucket string, options *Options) string
}

type uuidKeyGenerator struct{}

func (uuidKeyGenerator) GenerateKey(string, *Options) string {
	return uuid.NewString()
}

// service implements the Service interface
type service struct {
	store           ObjectStore
	acls            ACLStore
	codec           *MetadataCodec
	authorizer      Authorizer
	authEnabled     bool
	emitter         EventEmitter
	logger          *slog.Logger
	buckets         []string
	urlPrefix       string
	chunkSize       int
	concurrency     int
	includeUnscoped bool
	keyGen          KeyGenerator
	topic           string
	now             func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithObjectStore sets the object store backend
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithACLStore sets the side store for ACL lists
func WithACLStore(acls ACLStore) Option {
	return func(s *service) {
		s.acls = acls
	}
}

// WithAuthorizer enables authorization through the given decision gateway
func WithAuthorizer(authorizer Authorizer) Option {
	return func(s *service) {
		s.authorizer = authorizer
	}
}

// WithEventEmitter sets the notification emitter
func WithEventEmitter(emitter EventEmitter) Option {
	return func(s *service) {
		s.emitter = emitter
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithBuckets sets the bucket allow-list
func WithBuckets(buckets ...string) Option {
	return func(s *service) {
		s.buckets = append(s.buckets, buckets...)
	}
}

// WithURLPrefix sets the prefix of object URLs
func WithURLPrefix(prefix string) Option {
	return func(s *service) {
		s.urlPrefix = prefix
	}
}

// WithChunkSize sets the chunk size used when streaming reads
func WithChunkSize(size int) Option {
	return func(s *service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithConcurrency bounds how many copy or move items run at once
func WithConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithListIncludeUnscoped controls whether List shows objects to a caller
// whose what-is-allowed answer carries no scoping constraints.
func WithListIncludeUnscoped(include bool) Option {
	return func(s *service) {
		s.includeUnscoped = include
	}
}

// WithKeyGenerator sets the generator for uploads without a key
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *service) {
		s.keyGen = gen
	}
}

// WithEventTopic sets the notification topic
func WithEventTopic(topic string) Option {
	return func(s *service) {
		s.topic = topic
	}
}

// WithClock overrides the time source used for meta timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		urlPrefix:   DefaultURLPrefix,
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
		topic:       DefaultEventTopic,
		keyGen:      uuidKeyGenerator{},
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.acls == nil {
		return nil, fmt.Errorf("acl store is required")
	}
	if len(s.buckets) == 0 {
		return nil, fmt.Errorf("at least one bucket is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.authorizer != nil {
		s.authEnabled = true
	} else {
		s.authorizer = AllowAll{}
	}
	if s.emitter == nil {
		s.emitter = NoopEmitter{}
	}
	s.codec = NewMetadataCodec(s.acls)

	return s, nil
}

func (s *service) Buckets() []string {
	return slices.Clone(s.buckets)
}

func (s *service) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range s.buckets {
		if err := s.store.CreateBucket(ctx, bucket); err != nil {
			return &OperationError{Op: "create_bucket", Bucket: bucket, Err: err}
		}
		s.logger.Info("Bucket ready", "bucket", bucket)
	}
	return nil
}

func (s *service) validBucket(bucket string) bool {
	return bucket != "" && slices.Contains(s.buckets, bucket)
}

// checkTarget validates bucket membership and key presence.
func (s *service) checkTarget(op, bucket, key string) error {
	if !s.validBucket(bucket) {
		return &OperationError{Op: op, Bucket: bucket, Key: key, Err: ErrInvalidBucket}
	}
	if key == "" {
		return &OperationError{Op: op, Bucket: bucket, Err: ErrInvalidKey}
	}
	return nil
}

func (s *service) objectURL(bucket, key string) string {
	return s.urlPrefix + bucket + "/" + key
}

// resolveSubject returns a copy of subject with ID filled in from its token.
func (s *service) resolveSubject(ctx context.Context, subject *Subject) (*Subject, error) {
	out := subject.WithScope(subjectScope(subject))
	if out.ID != "" || out.Token == "" {
		return out, nil
	}
	id, err := s.authorizer.ResolveIdentity(ctx, out.Token)
	if err != nil {
		return nil, err
	}
	out.ID = id
	return out, nil
}

// decide asks the gateway and turns a DENY into a non-success status.
func (s *service) decide(ctx context.Context, subject *Subject, resources []Resource, action Action) (Status, bool) {
	d := s.authorizer.Decide(ctx, subject, resources, action, ModeIsAllowed)
	if d.Permitted() {
		return okStatus(), true
	}
	return denyStatus(d), false
}

func denyStatus(d Decision) Status {
	if d.Status.Code == 0 || d.Status.Code == CodeOK {
		msg := d.Status.Message
		if msg == "" || msg == okStatus().Message {
			msg = ErrPermissionDenied.Error()
		}
		return Status{Code: CodePermissionDenied, Message: msg}
	}
	return d.Status
}

// notify emits an event off the response path.
func (s *service) notify(ctx context.Context, event string, payload any) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.emitter.Emit(ctx, s.topic, event, payload); err != nil {
			s.logger.Warn("Failed to emit event", "event", event, "err", err)
		}
	}()
}

// forEach runs fn for every index with bounded concurrency and waits.
func (s *service) forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// revertACL undoes an ACL write whose object write failed.
func (s *service) revertACL(ctx context.Context, w *ACLWrite, bucket, key string) {
	if err := w.Revert(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("Failed to revert acl", "bucket", bucket, "key", key, "err", err)
	}
}

// statusFor logs err and converts it into a status.
func (s *service) statusFor(err error) Status {
	st := StatusFromError(err)
	if st.Code >= CodeInternal {
		s.logger.Error("Operation failed", "err", err)
	} else {
		s.logger.Debug("Operation rejected", "code", st.Code, "err", err)
	}
	return st
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
