package objectgate_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/objectgate/pkg/objectgate"
	aclmemory "github.com/tendant/objectgate/pkg/objectgate/aclstore/memory"
	"github.com/tendant/objectgate/pkg/objectgate/storage/memory"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// stubAuthorizer permits everything unless told otherwise and records calls
type stubAuthorizer struct {
	mu       sync.Mutex
	denyAll  bool
	deny     map[objectgate.Action]bool
	scope    *objectgate.Scope
	identity map[string]string
	calls    []decideCall
}

type decideCall struct {
	Subject   objectgate.Subject
	Resources []objectgate.Resource
	Action    objectgate.Action
	Mode      objectgate.Mode
}

func (a *stubAuthorizer) Decide(ctx context.Context, subject *objectgate.Subject, resources []objectgate.Resource, action objectgate.Action, mode objectgate.Mode) objectgate.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	call := decideCall{Resources: resources, Action: action, Mode: mode}
	if subject != nil {
		call.Subject = *subject
	}
	a.calls = append(a.calls, call)

	if a.denyAll || a.deny[action] {
		return objectgate.Decision{
			Effect: objectgate.Deny,
			Status: objectgate.Status{Code: objectgate.CodePermissionDenied, Message: "denied by policy"},
		}
	}
	d := objectgate.Decision{Effect: objectgate.Permit, Status: objectgate.Status{Code: objectgate.CodeOK, Message: "success"}}
	if mode == objectgate.ModeWhatIsAllowed {
		d.Scope = a.scope
	}
	return d
}

func (a *stubAuthorizer) ResolveIdentity(ctx context.Context, token string) (string, error) {
	if id, ok := a.identity[token]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: unknown token", objectgate.ErrUnauthenticated)
}

func (a *stubAuthorizer) setDenyAll(deny bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denyAll = deny
}

// reset forgets recorded calls
func (a *stubAuthorizer) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}

func (a *stubAuthorizer) callsFor(action objectgate.Action) []decideCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []decideCall
	for _, c := range a.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// countingStore counts mutations and injects failures
type countingStore struct {
	objectgate.ObjectStore

	mu          sync.Mutex
	mutations   map[string]int
	copyInputs  []objectgate.CopyInput
	deleteErr   error
	taggingErr  error
	readFailAt  int
	copyFailKey string
}

func newCountingStore(base objectgate.ObjectStore) *countingStore {
	return &countingStore{ObjectStore: base, mutations: map[string]int{}, readFailAt: -1}
}

func (c *countingStore) count(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations[op]++
}

func (c *countingStore) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.mutations {
		n += v
	}
	return n
}

func (c *countingStore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations = map[string]int{}
	c.copyInputs = nil
}

func (c *countingStore) Upload(ctx context.Context, input objectgate.UploadInput) (*objectgate.UploadOutput, error) {
	c.count("upload")
	return c.ObjectStore.Upload(ctx, input)
}

func (c *countingStore) CopyObject(ctx context.Context, input objectgate.CopyInput) (*objectgate.CopyOutput, error) {
	c.count("copy")
	c.mu.Lock()
	c.copyInputs = append(c.copyInputs, input)
	failKey := c.copyFailKey
	c.mu.Unlock()
	if failKey != "" && input.Key == failKey {
		return nil, errors.New("copy exploded")
	}
	return c.ObjectStore.CopyObject(ctx, input)
}

func (c *countingStore) DeleteObject(ctx context.Context, bucket, key string) error {
	c.count("delete")
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.ObjectStore.DeleteObject(ctx, bucket, key)
}

func (c *countingStore) PutObjectTagging(ctx context.Context, bucket, key string, tags []objectgate.Tag) error {
	c.count("tagging")
	return c.ObjectStore.PutObjectTagging(ctx, bucket, key, tags)
}

func (c *countingStore) GetObjectTagging(ctx context.Context, bucket, key string) ([]objectgate.Tag, error) {
	if c.taggingErr != nil {
		return nil, c.taggingErr
	}
	return c.ObjectStore.GetObjectTagging(ctx, bucket, key)
}

func (c *countingStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	body, err := c.ObjectStore.GetObject(ctx, bucket, key)
	if err != nil || c.readFailAt < 0 {
		return body, err
	}
	return io.NopCloser(io.MultiReader(io.LimitReader(body, int64(c.readFailAt)), failingReader{})), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

// sliceStream replays chunks, then err (or io.EOF)
type sliceStream struct {
	chunks []*objectgate.PutChunk
	err    error
	next   int
}

func (s *sliceStream) Recv() (*objectgate.PutChunk, error) {
	if s.next < len(s.chunks) {
		c := s.chunks[s.next]
		s.next++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// splitChunks cuts payload into n chunks; the first carries head
func splitChunks(head objectgate.PutChunk, payload []byte, n int) *sliceStream {
	stream := &sliceStream{}
	size := (len(payload) + n - 1) / n
	for i := 0; i < n; i++ {
		lo, hi := min(i*size, len(payload)), min((i+1)*size, len(payload))
		chunk := &objectgate.PutChunk{Object: payload[lo:hi]}
		if i == 0 {
			h := head
			h.Object = payload[lo:hi]
			chunk = &h
		}
		stream.chunks = append(stream.chunks, chunk)
	}
	return stream
}

type emitted struct {
	topic   string
	event   string
	payload any
}

type recordingEmitter struct {
	events chan emitted
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{events: make(chan emitted, 32)}
}

func (e *recordingEmitter) Emit(ctx context.Context, topic, event string, payload any) error {
	e.events <- emitted{topic: topic, event: event, payload: payload}
	return nil
}

func (e *recordingEmitter) wait(t *testing.T) emitted {
	t.Helper()
	select {
	case ev := <-e.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return emitted{}
	}
}

type harness struct {
	svc     objectgate.Service
	store   *countingStore
	backend *memory.Backend
	acls    *aclmemory.Store
	authz   *stubAuthorizer
	events  *recordingEmitter
}

func newHarness(t *testing.T, options ...objectgate.Option) *harness {
	t.Helper()
	h := &harness{
		backend: memory.New(),
		acls:    aclmemory.New(),
		authz:   &stubAuthorizer{identity: map[string]string{"good-token": "alice"}},
		events:  newRecordingEmitter(),
	}
	h.store = newCountingStore(h.backend)

	opts := []objectgate.Option{
		objectgate.WithObjectStore(h.store),
		objectgate.WithACLStore(h.acls),
		objectgate.WithAuthorizer(h.authz),
		objectgate.WithEventEmitter(h.events),
		objectgate.WithBuckets("test", "other"),
		objectgate.WithClock(func() time.Time { return fixedNow }),
	}
	svc, err := objectgate.New(append(opts, options...)...)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureBuckets(context.Background()))
	h.svc = svc
	h.store.reset()
	return h
}

func (h *harness) put(t *testing.T, chunk objectgate.PutChunk) *objectgate.PutResult {
	t.Helper()
	res := h.svc.Put(context.Background(), &sliceStream{chunks: []*objectgate.PutChunk{&chunk}})
	require.Equal(t, objectgate.CodeOK, res.OperationStatus.Code, res.OperationStatus.Message)
	return res
}

func collect(seq iter.Seq[*objectgate.GetEvent]) []*objectgate.GetEvent {
	var out []*objectgate.GetEvent
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func alice(scope string) *objectgate.Subject {
	return &objectgate.Subject{ID: "alice", Scope: scope}
}

func owner(instance string) []objectgate.Attribute {
	return []objectgate.Attribute{objectgate.NewOwner(instance)}
}
