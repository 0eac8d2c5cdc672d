package objectgate

// Request/Response DTOs

// FilterOperation is a comparison operator for list filters
type FilterOperation string

const (
	FilterEq FilterOperation = "eq"
)

// FilterFieldOwnerInstance filters listings by owning instance
const FilterFieldOwnerInstance = "meta.owners.instance"

// Filter is a single field/operator/value list filter
type Filter struct {
	Field     string          `json:"field"`
	Operation FilterOperation `json:"operation"`
	Value     string          `json:"value"`
}

// ListRequest contains parameters for listing objects
type ListRequest struct {
	Bucket  string
	Prefix  string
	MaxKeys int32
	Filter  *Filter
	Subject *Subject
}

// ObjectEntry is the display record of a listed object
type ObjectEntry struct {
	Name string `json:"object_name"`
	URL  string `json:"url"`
	Meta Meta   `json:"meta"`
}

// ListItem is one listed object with its status
type ListItem struct {
	Payload *ObjectEntry `json:"payload,omitempty"`
	Status  Status       `json:"status"`
}

// ListResult is the result of List
type ListResult struct {
	Items           []ListItem `json:"items"`
	OperationStatus Status     `json:"operation_status"`
}

// GetRequest contains parameters for reading an object
type GetRequest struct {
	Bucket   string
	Key      string
	Download bool
	Subject  *Subject
}

// ObjectChunk is one slice of an object together with its (constant) envelope
type ObjectChunk struct {
	Bucket          string   `json:"bucket"`
	Key             string   `json:"key"`
	Object          []byte   `json:"object"`
	URL             string   `json:"url"`
	Meta            Meta     `json:"meta"`
	Data            Data     `json:"data,omitempty"`
	Options         *Options `json:"options,omitempty"`
	WriterSubjectID string   `json:"subject_id,omitempty"`
}

// GetEvent is one element of a Get stream. A failure event has no payload.
type GetEvent struct {
	Payload *ObjectChunk `json:"payload,omitempty"`
	Status  Status       `json:"status"`
}

// PutChunk is one element of a Put stream. Only the first chunk's
// bucket/key/meta/data/options/subject are used.
type PutChunk struct {
	Bucket  string
	Key     string
	Object  []byte
	Meta    *Meta
	Data    Data
	Options *Options
	Subject *Subject
}

// ChunkReader is the inbound side of a client stream. Recv returns io.EOF
// after the last chunk; any other error aborts the upload.
type ChunkReader interface {
	Recv() (*PutChunk, error)
}

// PutPayload describes a stored object
type PutPayload struct {
	Key    string `json:"key"`
	Bucket string `json:"bucket"`
	URL    string `json:"url"`
	Meta   Meta   `json:"meta"`
	Tags   []Tag  `json:"tags,omitempty"`
	Length int64  `json:"length"`
}

// PutResult is the result of Put
type PutResult struct {
	Payload         *PutPayload `json:"payload,omitempty"`
	OperationStatus Status      `json:"operation_status"`
}

// DeleteRequest contains parameters for deleting an object
type DeleteRequest struct {
	Bucket  string
	Key     string
	Subject *Subject
}

// DeleteResult is the result of Delete
type DeleteResult struct {
	OperationStatus Status `json:"operation_status"`
}

// CopyItem is one copy instruction. CopySource is "/bucket/key".
type CopyItem struct {
	Bucket     string   `json:"bucket"`
	CopySource string   `json:"copy_source"`
	Key        string   `json:"key"`
	Meta       *Meta    `json:"meta,omitempty"`
	Data       Data     `json:"data,omitempty"`
	Options    *Options `json:"options,omitempty"`
}

// CopyRequest contains parameters for a copy batch
type CopyRequest struct {
	Items   []CopyItem
	Subject *Subject
}

// CopyPayload describes a copied object
type CopyPayload struct {
	Bucket     string   `json:"bucket"`
	CopySource string   `json:"copy_source"`
	Key        string   `json:"key"`
	Meta       Meta     `json:"meta"`
	Options    *Options `json:"options,omitempty"`
}

// CopyItemResult is the outcome of one copy item
type CopyItemResult struct {
	Payload *CopyPayload `json:"payload,omitempty"`
	Status  Status       `json:"status"`
}

// CopyResult is the result of Copy
type CopyResult struct {
	Items           []CopyItemResult `json:"items"`
	OperationStatus Status           `json:"operation_status"`
}

// MoveItem is one move instruction. SourceObject is "/bucket/key".
type MoveItem struct {
	Bucket       string   `json:"bucket"`
	Key          string   `json:"key"`
	SourceObject string   `json:"source_object"`
	Meta         *Meta    `json:"meta,omitempty"`
	Options      *Options `json:"options,omitempty"`
}

// MoveRequest contains parameters for a move batch
type MoveRequest struct {
	Items   []MoveItem
	Subject *Subject
}

// MovePayload describes a moved object
type MovePayload struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	SourceObject string `json:"source_object"`
	Meta         Meta   `json:"meta"`
}

// MoveItemResult is the outcome of one move item
type MoveItemResult struct {
	Payload *MovePayload `json:"payload,omitempty"`
	Status  Status       `json:"status"`
}

// MoveResult is the result of Move
type MoveResult struct {
	Items           []MoveItemResult `json:"items"`
	OperationStatus Status           `json:"operation_status"`
}
