package objectgate

import (
	"encoding/json"
	"io"
	"time"
)

// Status codes carried by OperationStatus and per-item statuses.
const (
	CodeOK               = 200
	CodeBadRequest       = 400
	CodeUnauthenticated  = 401
	CodePermissionDenied = 403
	CodeNotFound         = 404
	CodeInternal         = 500
)

// Default owner attribute identifiers. An owner entry names the owning entity
// type in ID/Value and carries the owning instance as a nested attribute.
const (
	OwnerEntityAttribute   = "urn:restorecommerce:acs:names:ownerIndicatoryEntity"
	OwnerInstanceAttribute = "urn:restorecommerce:acs:names:ownerInstance"
	OrganizationEntity     = "urn:restorecommerce:acs:model:organization.Organization"
)

// Status is a numeric code plus a human-readable message.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK reports whether the status is a success.
func (s Status) OK() bool {
	return s.Code == CodeOK
}

func okStatus() Status {
	return Status{Code: CodeOK, Message: "success"}
}

// Attribute is a node in an attribute tree. Owners and ACL entries are both
// expressed as attribute trees.
type Attribute struct {
	ID         string      `json:"id"`
	Value      string      `json:"value"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Meta is the structured part of an object's envelope.
type Meta struct {
	Created    time.Time   `json:"created,omitzero"`
	Modified   time.Time   `json:"modified,omitzero"`
	CreatedBy  string      `json:"created_by,omitempty"`
	ModifiedBy string      `json:"modified_by,omitempty"`
	Owners     []Attribute `json:"owners,omitempty"`
	ACL        []Attribute `json:"acl,omitempty"`
}

// Clone returns a deep copy of m. A nil receiver yields an empty Meta.
func (m *Meta) Clone() Meta {
	if m == nil {
		return Meta{}
	}
	out := *m
	out.Owners = cloneAttributes(m.Owners)
	out.ACL = cloneAttributes(m.ACL)
	return out
}

func cloneAttributes(in []Attribute) []Attribute {
	if in == nil {
		return nil
	}
	out := make([]Attribute, len(in))
	for i, a := range in {
		out[i] = Attribute{ID: a.ID, Value: a.Value, Attributes: cloneAttributes(a.Attributes)}
	}
	return out
}

// Envelope is the composite record attached to every object.
type Envelope struct {
	Meta            Meta
	Data            Data
	WriterSubjectID string
}

// Data is the caller's opaque payload, carried byte for byte. In JSON it is
// rendered inline when it is itself valid JSON and as a string otherwise.
type Data []byte

func (d Data) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	if json.Valid(d) {
		return d, nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON keeps the raw JSON value, as json.RawMessage does.
func (d *Data) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = nil
		return nil
	}
	*d = append((*d)[:0], b...)
	return nil
}

// Subject identifies the caller. When only Token is set the Authorizer
// resolves ID through the identity service. Scope is the owning-entity
// instance the caller is acting within.
type Subject struct {
	ID    string `json:"id,omitempty"`
	Token string `json:"token,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// WithScope returns a copy of s acting within scope.
func (s *Subject) WithScope(scope string) *Subject {
	out := Subject{}
	if s != nil {
		out = *s
	}
	out.Scope = scope
	return &out
}

// Tag is a single object tag.
type Tag struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Options are the content headers and tag set applied to an object.
type Options struct {
	ContentType        string `json:"content_type,omitempty"`
	ContentEncoding    string `json:"content_encoding,omitempty"`
	ContentLanguage    string `json:"content_language,omitempty"`
	ContentDisposition string `json:"content_disposition,omitempty"`
	Tags               []Tag  `json:"tags,omitempty"`
}

// IsZero reports whether no option is set.
func (o *Options) IsZero() bool {
	return o == nil || (o.ContentType == "" && o.ContentEncoding == "" &&
		o.ContentLanguage == "" && o.ContentDisposition == "" && len(o.Tags) == 0)
}

// ContentHeaders are the standard HTTP content headers kept by the object store.
type ContentHeaders struct {
	ContentType        string
	ContentEncoding    string
	ContentLanguage    string
	ContentDisposition string
}

func (o *Options) headers() ContentHeaders {
	if o == nil {
		return ContentHeaders{}
	}
	return ContentHeaders{
		ContentType:        o.ContentType,
		ContentEncoding:    o.ContentEncoding,
		ContentLanguage:    o.ContentLanguage,
		ContentDisposition: o.ContentDisposition,
	}
}

func optionsFrom(h ContentHeaders, tags []Tag) *Options {
	return &Options{
		ContentType:        h.ContentType,
		ContentEncoding:    h.ContentEncoding,
		ContentLanguage:    h.ContentLanguage,
		ContentDisposition: h.ContentDisposition,
		Tags:               tags,
	}
}

// ObjectSummary is one entry of a bucket listing.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectHead is the result of a head request.
type ObjectHead struct {
	Metadata      map[string]string
	Headers       ContentHeaders
	ContentLength int64
	ETag          string
	LastModified  time.Time
}

// UploadInput describes a streaming upload.
type UploadInput struct {
	Bucket   string
	Key      string
	Body     io.Reader
	Metadata map[string]string
	Headers  ContentHeaders
	Tagging  string
}

// UploadOutput is returned by a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// CopyInput describes a server-side copy. CopySource is the (possibly
// percent-encoded) "/bucket/key" reference.
type CopyInput struct {
	Bucket          string
	Key             string
	CopySource      string
	Metadata        map[string]string
	Headers         ContentHeaders
	ReplaceMetadata bool
	ReplaceTagging  bool
	Tagging         string
}

// CopyOutput is returned by a successful copy.
type CopyOutput struct {
	ETag         string
	LastModified time.Time
}
