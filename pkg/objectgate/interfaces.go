package objectgate

import (
	"context"
	"io"
)

// ObjectStore defines the object store primitives the pipeline consumes.
// Implementations must report a missing object as an error matching ErrNotFound.
type ObjectStore interface {
	// CreateBucket creates bucket if it does not exist yet
	CreateBucket(ctx context.Context, bucket string) error

	// ListObjects lists keys in bucket under prefix, at most maxKeys when positive
	ListObjects(ctx context.Context, bucket, prefix string, maxKeys int32) ([]ObjectSummary, error)

	// HeadObject returns metadata and content headers
	HeadObject(ctx context.Context, bucket, key string) (*ObjectHead, error)

	// GetObject opens a read stream
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// GetObjectTagging returns the tag set
	GetObjectTagging(ctx context.Context, bucket, key string) ([]Tag, error)

	// PutObjectTagging replaces the tag set
	PutObjectTagging(ctx context.Context, bucket, key string, tags []Tag) error

	// Upload streams Body to the store; nothing is committed if Body fails
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)

	// CopyObject performs a server-side copy
	CopyObject(ctx context.Context, input CopyInput) (*CopyOutput, error)

	// DeleteObject removes the object
	DeleteObject(ctx context.Context, bucket, key string) error
}

// ACLStore is the key-value side store for ACL lists. Get reports absence
// with ok == false rather than an error.
type ACLStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// EventEmitter delivers notifications. The pipeline never waits on it for
// the response path; errors are only logged.
type EventEmitter interface {
	Emit(ctx context.Context, topic, event string, payload any) error
}

// Action is the operation being authorized.
type Action string

const (
	ActionRead   Action = "READ"
	ActionCreate Action = "CREATE"
	ActionModify Action = "MODIFY"
	ActionDelete Action = "DELETE"
)

// Mode selects between a binary decision and a scoping query.
type Mode int

const (
	// ModeIsAllowed asks whether the action on the resources is permitted
	ModeIsAllowed Mode = iota
	// ModeWhatIsAllowed asks which scopes the action is permitted within
	ModeWhatIsAllowed
)

func (m Mode) String() string {
	if m == ModeWhatIsAllowed {
		return "whatIsAllowed"
	}
	return "isAllowed"
}

// Resource is the context the decision service evaluates.
type Resource struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key,omitempty"`
	Meta      *Meta  `json:"meta,omitempty"`
	Data      Data   `json:"data,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
}

// Effect is the outcome of a decision.
type Effect string

const (
	Permit Effect = "PERMIT"
	Deny   Effect = "DENY"
)

// Scope carries the scoping constraints of a what-is-allowed query.
type Scope struct {
	OwnerInstances []string `json:"owner_instances"`
}

// Decision is the result of Authorizer.Decide.
type Decision struct {
	Effect Effect
	Status Status
	Scope  *Scope
}

// Permitted reports whether the decision is PERMIT.
func (d Decision) Permitted() bool {
	return d.Effect == Permit
}

// Authorizer is the DecisionGateway consumed by the pipeline. Decide never
// fails: collaborator failures come back as a DENY carrying the failure's
// code and message.
type Authorizer interface {
	Decide(ctx context.Context, subject *Subject, resources []Resource, action Action, mode Mode) Decision

	// ResolveIdentity returns the subject id behind a bearer token
	ResolveIdentity(ctx context.Context, token string) (string, error)
}
