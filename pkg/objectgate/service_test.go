package objectgate_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/objectgate/pkg/objectgate"
	aclmemory "github.com/tendant/objectgate/pkg/objectgate/aclstore/memory"
	"github.com/tendant/objectgate/pkg/objectgate/storage/memory"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		options     []objectgate.Option
		expectError bool
	}{
		{
			name:        "no object store",
			options:     []objectgate.Option{objectgate.WithACLStore(aclmemory.New()), objectgate.WithBuckets("test")},
			expectError: true,
		},
		{
			name:        "no acl store",
			options:     []objectgate.Option{objectgate.WithObjectStore(memory.New()), objectgate.WithBuckets("test")},
			expectError: true,
		},
		{
			name:        "no buckets",
			options:     []objectgate.Option{objectgate.WithObjectStore(memory.New()), objectgate.WithACLStore(aclmemory.New())},
			expectError: true,
		},
		{
			name: "valid",
			options: []objectgate.Option{
				objectgate.WithObjectStore(memory.New()),
				objectgate.WithACLStore(aclmemory.New()),
				objectgate.WithBuckets("test", "other"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := objectgate.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"test", "other"}, svc.Buckets())
		})
	}
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := []byte("{\"k\": 1}\n")
	owners := []objectgate.Attribute{{ID: "org", Value: "orgC"}}

	res := h.put(t, objectgate.PutChunk{
		Bucket:  "test",
		Key:     "a.json",
		Object:  payload,
		Meta:    &objectgate.Meta{Owners: owners},
		Subject: alice("orgC"),
	})
	require.NotNil(t, res.Payload)
	assert.Equal(t, "a.json", res.Payload.Key)
	assert.Equal(t, "test", res.Payload.Bucket)
	assert.Equal(t, "//test/a.json", res.Payload.URL)
	assert.Equal(t, int64(9), res.Payload.Length)

	events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a.json", Subject: alice("orgC")}))
	require.Len(t, events, 1)
	require.True(t, events[0].Status.OK())
	assert.Equal(t, payload, events[0].Payload.Object)
	assert.Equal(t, owners, events[0].Payload.Meta.Owners)
}

func TestPut_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	options := &objectgate.Options{
		ContentType:        "application/json",
		ContentEncoding:    "identity",
		ContentLanguage:    "en",
		ContentDisposition: `inline; filename="doc.json"`,
		Tags:               []objectgate.Tag{{ID: "project", Value: "apollo 11"}, {ID: "stage", Value: "draft&final"}},
	}
	data := objectgate.Data(`{"title":"Ünïcode ✓"}`)

	res := h.put(t, objectgate.PutChunk{
		Bucket:  "test",
		Key:     "docs/doc.json",
		Object:  []byte(`{"x":1}`),
		Meta:    &objectgate.Meta{Owners: owner("orgA")},
		Data:    data,
		Options: options,
		Subject: alice("orgA"),
	})
	assert.Equal(t, options.Tags, res.Payload.Tags)

	events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "docs/doc.json", Subject: alice("orgA")}))
	require.Len(t, events, 1)
	chunk := events[0].Payload
	require.NotNil(t, chunk)

	assert.Equal(t, owner("orgA"), chunk.Meta.Owners)
	assert.Equal(t, options, chunk.Options)
	assert.Equal(t, data, chunk.Data)
	assert.Equal(t, "alice", chunk.WriterSubjectID)
	assert.Equal(t, "//test/docs/doc.json", chunk.URL)
	assert.Equal(t, "alice", chunk.Meta.CreatedBy)
	assert.Equal(t, "alice", chunk.Meta.ModifiedBy)
	assert.True(t, chunk.Meta.Modified.Equal(fixedNow))
}

func TestPut_ChunkBoundaryIndependence(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 100)

	for _, n := range []int{1, 2, 7, 1000} {
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			h := newHarness(t, objectgate.WithChunkSize(64))
			ctx := context.Background()

			stream := splitChunks(objectgate.PutChunk{Bucket: "test", Key: "big.bin", Subject: alice("orgA")}, payload, n)
			res := h.svc.Put(ctx, stream)
			require.True(t, res.OperationStatus.OK(), res.OperationStatus.Message)
			assert.Equal(t, int64(len(payload)), res.Payload.Length)

			head, err := h.backend.HeadObject(ctx, "test", "big.bin")
			require.NoError(t, err)
			assert.Equal(t, int64(len(payload)), head.ContentLength)

			events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "big.bin", Subject: alice("orgA")}))
			require.Len(t, events, 16)
			var got []byte
			for _, ev := range events {
				require.True(t, ev.Status.OK())
				got = append(got, ev.Payload.Object...)
			}
			assert.Equal(t, payload, got)
		})
	}
}

func TestPut_LaterChunksCannotRedirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stream := &sliceStream{chunks: []*objectgate.PutChunk{
		{Bucket: "test", Key: "a.txt", Object: []byte("hello "), Subject: alice("orgA")},
		{Bucket: "other", Key: "evil.txt", Object: []byte("world")},
	}}
	res := h.svc.Put(ctx, stream)
	require.True(t, res.OperationStatus.OK())

	body, err := h.backend.GetObject(ctx, "test", "a.txt")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(body)
	assert.Equal(t, "hello world", buf.String())

	_, err = h.backend.HeadObject(ctx, "other", "evil.txt")
	assert.ErrorIs(t, err, objectgate.ErrNotFound)
}

func TestPut_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid bucket", func(t *testing.T) {
		h := newHarness(t)
		res := h.svc.Put(ctx, &sliceStream{chunks: []*objectgate.PutChunk{{Bucket: "nope", Key: "a", Object: []byte("x")}}})
		assert.Equal(t, objectgate.CodeBadRequest, res.OperationStatus.Code)
		assert.Nil(t, res.Payload)
		assert.Zero(t, h.store.total())
	})

	t.Run("empty stream", func(t *testing.T) {
		h := newHarness(t)
		res := h.svc.Put(ctx, &sliceStream{})
		assert.Equal(t, objectgate.CodeBadRequest, res.OperationStatus.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		h := newHarness(t)
		res := h.svc.Put(ctx, &sliceStream{chunks: []*objectgate.PutChunk{{
			Bucket: "test", Key: "a", Object: []byte("x"), Subject: &objectgate.Subject{Token: "bad"},
		}}})
		assert.Equal(t, objectgate.CodeUnauthenticated, res.OperationStatus.Code)
		assert.Zero(t, h.store.total())
	})

	t.Run("aborted stream leaves no object", func(t *testing.T) {
		h := newHarness(t)
		stream := &sliceStream{
			chunks: []*objectgate.PutChunk{{Bucket: "test", Key: "partial", Object: []byte("abc"), Subject: alice("")}},
			err:    errors.New("client went away"),
		}
		res := h.svc.Put(ctx, stream)
		assert.Equal(t, objectgate.CodeInternal, res.OperationStatus.Code)
		assert.Nil(t, res.Payload)

		_, err := h.backend.HeadObject(ctx, "test", "partial")
		assert.ErrorIs(t, err, objectgate.ErrNotFound)
	})

	t.Run("aborted first write leaves no acl", func(t *testing.T) {
		h := newHarness(t)
		res := h.svc.Put(ctx, &sliceStream{
			chunks: []*objectgate.PutChunk{{
				Bucket: "test", Key: "fresh", Object: []byte("abc"), Subject: alice(""),
				Meta: &objectgate.Meta{ACL: []objectgate.Attribute{{ID: "role", Value: "B"}}},
			}},
			err: errors.New("client went away"),
		})
		assert.Equal(t, objectgate.CodeInternal, res.OperationStatus.Code)

		_, ok, err := h.acls.Get(ctx, objectgate.ACLKey("test", "fresh"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("aborted overwrite keeps previous acl", func(t *testing.T) {
		h := newHarness(t)
		h.put(t, objectgate.PutChunk{
			Bucket: "test", Key: "doc", Object: []byte("v1"), Subject: alice(""),
			Meta: &objectgate.Meta{ACL: []objectgate.Attribute{{ID: "role", Value: "A"}}},
		})

		res := h.svc.Put(ctx, &sliceStream{
			chunks: []*objectgate.PutChunk{{
				Bucket: "test", Key: "doc", Object: []byte("v2"), Subject: alice(""),
				Meta: &objectgate.Meta{ACL: []objectgate.Attribute{{ID: "role", Value: "B"}}},
			}},
			err: errors.New("client went away"),
		})
		assert.Equal(t, objectgate.CodeInternal, res.OperationStatus.Code)

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "doc", Subject: alice("")}))
		require.Len(t, events, 1)
		require.NotNil(t, events[0].Payload)
		assert.Equal(t, []byte("v1"), events[0].Payload.Object)
		assert.Equal(t, []objectgate.Attribute{{ID: "role", Value: "A"}}, events[0].Payload.Meta.ACL)
	})
}

func TestPut_OverwriteWithoutACLClearsEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.put(t, objectgate.PutChunk{
		Bucket: "test", Key: "doc", Object: []byte("v1"), Subject: alice(""),
		Meta: &objectgate.Meta{ACL: []objectgate.Attribute{{ID: "role", Value: "A"}}},
	})
	h.put(t, objectgate.PutChunk{Bucket: "test", Key: "doc", Object: []byte("v2"), Subject: alice("")})

	_, ok, err := h.acls.Get(ctx, objectgate.ACLKey("test", "doc"))
	require.NoError(t, err)
	assert.False(t, ok)

	events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "doc", Subject: alice("")}))
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Payload.Meta.ACL)
}

func TestPut_OpaqueData(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data objectgate.Data
	}{
		{name: "json", data: objectgate.Data(`{"k":1}`)},
		{name: "non-ascii json", data: objectgate.Data(`{"n":"é"}`)},
		{name: "plain text", data: objectgate.Data("not json at all")},
		{name: "binary", data: objectgate.Data{0x00, 0xff, 0x10, '\n'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.put(t, objectgate.PutChunk{Bucket: "test", Key: "a", Object: []byte("x"), Data: tt.data, Subject: alice("")})

			events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a", Subject: alice("")}))
			require.Len(t, events, 1)
			require.NotNil(t, events[0].Payload)
			assert.Equal(t, tt.data, events[0].Payload.Data)
		})
	}
}

func TestPut_MetaAugmentation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.put(t, objectgate.PutChunk{
		Bucket:  "test",
		Key:     "a.txt",
		Object:  []byte("x"),
		Subject: &objectgate.Subject{Token: "good-token", Scope: "orgB"},
	})
	assert.Equal(t, owner("orgB"), res.Payload.Meta.Owners)
	assert.Equal(t, "alice", res.Payload.Meta.CreatedBy)
	assert.Equal(t, "alice", res.Payload.Meta.ModifiedBy)
	assert.True(t, res.Payload.Meta.Created.Equal(fixedNow))

	calls := h.authz.callsFor(objectgate.ActionCreate)
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Resources, 1)
	assert.Equal(t, "a.txt", calls[0].Resources[0].Key)
	assert.Equal(t, owner("orgB"), calls[0].Resources[0].Meta.Owners)

	ev := h.events.wait(t)
	assert.Equal(t, objectgate.DefaultEventTopic, ev.topic)
	assert.Equal(t, objectgate.EventObjectUploaded, ev.event)

	// Supplied owners and creator are kept
	res = h.put(t, objectgate.PutChunk{
		Bucket:  "test",
		Key:     "b.txt",
		Object:  []byte("x"),
		Meta:    &objectgate.Meta{Owners: owner("orgZ"), CreatedBy: "bob"},
		Subject: alice("orgB"),
	})
	assert.Equal(t, owner("orgZ"), res.Payload.Meta.Owners)
	assert.Equal(t, "bob", res.Payload.Meta.CreatedBy)
	assert.Equal(t, "alice", res.Payload.Meta.ModifiedBy)

	// Missing key is generated
	res = h.put(t, objectgate.PutChunk{Bucket: "test", Object: []byte("x"), Subject: alice("")})
	assert.NotEmpty(t, res.Payload.Key)
	_, err := h.backend.HeadObject(ctx, "test", res.Payload.Key)
	assert.NoError(t, err)
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t)
		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "missing", Subject: alice("")}))
		require.Len(t, events, 1)
		assert.Equal(t, objectgate.CodeNotFound, events[0].Status.Code)
		assert.Nil(t, events[0].Payload)
	})

	t.Run("invalid bucket and key", func(t *testing.T) {
		h := newHarness(t)
		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "nope", Key: "a"}))
		require.Len(t, events, 1)
		assert.Equal(t, objectgate.CodeBadRequest, events[0].Status.Code)

		events = collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test"}))
		require.Len(t, events, 1)
		assert.Equal(t, objectgate.CodeBadRequest, events[0].Status.Code)
	})

	t.Run("empty object yields one empty chunk", func(t *testing.T) {
		h := newHarness(t)
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "empty", Subject: alice("")})

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "empty", Subject: alice("")}))
		require.Len(t, events, 1)
		require.True(t, events[0].Status.OK())
		assert.Empty(t, events[0].Payload.Object)
	})

	t.Run("mid-stream failure ends with a failure event", func(t *testing.T) {
		h := newHarness(t, objectgate.WithChunkSize(4))
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "a", Object: []byte("0123456789"), Subject: alice("")})
		h.store.readFailAt = 10

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a", Subject: alice("")}))
		require.Len(t, events, 4)
		for _, ev := range events[:3] {
			assert.True(t, ev.Status.OK())
		}
		assert.Equal(t, []byte("89"), events[2].Payload.Object)
		assert.Equal(t, objectgate.CodeInternal, events[3].Status.Code)
		assert.Nil(t, events[3].Payload)
	})

	t.Run("tagging failure", func(t *testing.T) {
		h := newHarness(t)
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "a", Object: []byte("x"), Subject: alice("")})
		h.store.taggingErr = errors.New("tagging unavailable")

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a", Subject: alice("")}))
		require.Len(t, events, 1)
		assert.Equal(t, objectgate.CodeInternal, events[0].Status.Code)
	})

	t.Run("scope restored from owners", func(t *testing.T) {
		h := newHarness(t)
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "a", Object: []byte("x"), Meta: &objectgate.Meta{Owners: owner("orgX")}, Subject: alice("orgY")})

		collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a", Subject: alice("orgY")}))
		calls := h.authz.callsFor(objectgate.ActionRead)
		require.Len(t, calls, 1)
		assert.Equal(t, "orgX", calls[0].Subject.Scope)
	})

	t.Run("download disposition and notification", func(t *testing.T) {
		h := newHarness(t)
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "dir/report.pdf", Object: []byte("x"), Subject: alice("")})
		h.events.wait(t) // uploaded

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "dir/report.pdf", Download: true, Subject: alice("")}))
		require.Len(t, events, 1)
		assert.Equal(t, `attachment; filename="report.pdf"`, events[0].Payload.Options.ContentDisposition)

		ev := h.events.wait(t)
		assert.Equal(t, objectgate.EventObjectDownloadRequested, ev.event)
		payload := ev.payload.(map[string]any)
		assert.Equal(t, "dir/report.pdf", payload["key"])
		assert.Equal(t, "alice", payload["requested_by"])

		events = collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "dir/report.pdf", Subject: alice("")}))
		assert.Equal(t, "inline", events[0].Payload.Options.ContentDisposition)
	})

	t.Run("consumer can stop early", func(t *testing.T) {
		h := newHarness(t, objectgate.WithChunkSize(2))
		h.put(t, objectgate.PutChunk{Bucket: "test", Key: "a", Object: []byte("0123456789"), Subject: alice("")})

		n := 0
		for range h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a", Subject: alice("")}) {
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})
}

func TestAuthorizationGate(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, h *harness) {
		h.put(t, objectgate.PutChunk{
			Bucket: "test", Key: "a.txt", Object: []byte("x"),
			Meta: &objectgate.Meta{Owners: owner("orgA")}, Subject: alice("orgA"),
		})
		h.store.reset()
	}

	t.Run("deny", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h)
		h.authz.setDenyAll(true)

		res := h.svc.Put(ctx, &sliceStream{chunks: []*objectgate.PutChunk{{Bucket: "test", Key: "b.txt", Object: []byte("x"), Subject: alice("orgA")}}})
		assert.Equal(t, objectgate.CodePermissionDenied, res.OperationStatus.Code)

		events := collect(h.svc.Get(ctx, objectgate.GetRequest{Bucket: "test", Key: "a.txt", Subject: alice("orgA")}))
		require.Len(t, events, 1)
		assert.Equal(t, objectgate.CodePermissionDenied, events[0].Status.Code)
		assert.Nil(t, events[0].Payload)

		del := h.svc.Delete(ctx, objectgate.DeleteRequest{Bucket: "test", Key: "a.txt", Subject: alice("orgA")})
		assert.Equal(t, objectgate.CodePermissionDenied, del.OperationStatus.Code)

		cp := h.svc.Copy(ctx, objectgate.CopyRequest{
			Items:   []objectgate.CopyItem{{Bucket: "other", CopySource: "/test/a.txt", Key: "a.txt"}},
			Subject: alice("orgA"),
		})
		require.Len(t, cp.Items, 1)
		assert.Equal(t, objectgate.CodePermissionDenied, cp.Items[0].Status.Code)
		assert.True(t, cp.OperationStatus.OK())

		assert.Zero(t, h.store.total())
		assert.Equal(t, 0, h.acls.Len())
	})

	t.Run("permit", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h)

		h.svc.Put(ctx, &sliceStream{chunks: []*objectgate.PutChunk{{Bucket: "test", Key: "b.txt", Object: []byte("x"), Subject: alice("orgA")}}})
		assert.Equal(t, 1, h.store.total())

		h.store.reset()
		h.svc.Copy(ctx, objectgate.CopyRequest{
			Items:   []objectgate.CopyItem{{Bucket: "other", CopySource: "/test/a.txt", Key: "a.txt"}},
			Subject: alice("orgA"),
		})
		assert.Equal(t, 1, h.store.total())

		h.store.reset()
		h.svc.Delete(ctx, objectgate.DeleteRequest{Bucket: "test", Key: "a.txt", Subject: alice("orgA")})
		assert.Equal(t, 1, h.store.total())
	})
}

func TestWithoutAuthorizer(t *testing.T) {
	ctx := context.Background()
	svc, err := objectgate.New(
		objectgate.WithObjectStore(memory.New()),
		objectgate.WithACLStore(aclmemory.New()),
		objectgate.WithBuckets("test"),
		objectgate.WithURLPrefix("https://cdn.example.com/"),
	)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureBuckets(ctx))

	res := svc.Put(ctx, &sliceStream{chunks: []*objectgate.PutChunk{{Bucket: "test", Key: "a", Object: []byte("x")}}})
	require.True(t, res.OperationStatus.OK())
	assert.Equal(t, "https://cdn.example.com/test/a", res.Payload.URL)

	list := svc.List(ctx, objectgate.ListRequest{})
	require.Len(t, list.Items, 1)
	assert.Equal(t, "a", list.Items[0].Payload.Name)
}
