package objectgate

import (
	"context"
	"iter"
)

// Service is the authorization-gated object pipeline.
//
// No method returns an error: every path terminates in a structured Status.
// Batch operations (List, Copy, Move) report per-item statuses alongside an
// operation status that is a success unless a batch precondition failed.
type Service interface {
	// List lists objects visible to the caller
	List(ctx context.Context, req ListRequest) *ListResult

	// Get streams an object as chunk events. The sequence is pull-driven:
	// the next chunk is read from the store only when the consumer asks for it.
	Get(ctx context.Context, req GetRequest) iter.Seq[*GetEvent]

	// Put consumes a chunk stream and uploads it incrementally
	Put(ctx context.Context, stream ChunkReader) *PutResult

	// Delete removes one object
	Delete(ctx context.Context, req DeleteRequest) *DeleteResult

	// Copy copies objects, each item independently
	Copy(ctx context.Context, req CopyRequest) *CopyResult

	// Move copies then deletes the source, each item independently
	Move(ctx context.Context, req MoveRequest) *MoveResult

	// EnsureBuckets creates every configured bucket that is missing
	EnsureBuckets(ctx context.Context) error

	// Buckets returns the configured bucket allow-list
	Buckets() []string
}
