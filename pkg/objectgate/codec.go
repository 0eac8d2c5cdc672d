package objectgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// User metadata field names holding the encoded envelope.
const (
	MetaField    = "meta"
	DataField    = "data"
	SubjectField = "subjectid"
)

// ACLKey is the ACLStore key for an object.
func ACLKey(bucket, key string) string {
	return bucket + ":" + key
}

// MetadataCodec splits the envelope across object metadata fields and the
// ACL side store, and joins it back on read.
//
// Decode tolerance: a missing field decodes to its empty value. Only a field
// that is present but not valid JSON is an error (ErrMetadataDecode).
type MetadataCodec struct {
	acls ACLStore
}

// NewMetadataCodec creates a codec. A nil store disables ACL persistence.
func NewMetadataCodec(acls ACLStore) *MetadataCodec {
	return &MetadataCodec{acls: acls}
}

// Encode serializes env into flat string metadata. meta.acl is never embedded.
func (c *MetadataCodec) Encode(env Envelope) (map[string]string, error) {
	meta := env.Meta.Clone()
	meta.ACL = nil

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	out := map[string]string{
		MetaField: asciiJSON(metaJSON),
	}

	if len(env.Data) > 0 {
		out[DataField] = env.Data.Field()
	}

	if env.WriterSubjectID != "" {
		subjectJSON, err := json.Marshal(env.WriterSubjectID)
		if err != nil {
			return nil, fmt.Errorf("encode subject: %w", err)
		}
		out[SubjectField] = asciiJSON(subjectJSON)
	}
	return out, nil
}

// Decode reverses Encode.
func (c *MetadataCodec) Decode(metadata map[string]string) (Envelope, error) {
	var env Envelope

	if raw, ok := lookupField(metadata, MetaField); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.Meta); err != nil {
			return Envelope{}, fmt.Errorf("%w: meta: %v", ErrMetadataDecode, err)
		}
	}

	if raw, ok := lookupField(metadata, DataField); ok && raw != "" {
		data, err := ParseDataField(raw)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrMetadataDecode, err)
		}
		env.Data = data
	}

	if raw, ok := lookupField(metadata, SubjectField); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.WriterSubjectID); err != nil {
			return Envelope{}, fmt.Errorf("%w: subject: %v", ErrMetadataDecode, err)
		}
	}
	return env, nil
}

// ExtractAndStoreACL writes meta.acl under bucket:key and returns meta
// without it. The write describes the object about to be stored, so an empty
// ACL removes any entry left by a previous object. The returned ACLWrite
// undoes the change if storing the object fails.
func (c *MetadataCodec) ExtractAndStoreACL(ctx context.Context, meta Meta, bucket, key string) (Meta, *ACLWrite, error) {
	out := meta.Clone()
	acl := out.ACL
	out.ACL = nil
	write := &ACLWrite{codec: c, key: ACLKey(bucket, key)}
	if c.acls == nil {
		return out, write, nil
	}

	prev, existed, err := c.acls.Get(ctx, write.key)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("%w: fetch acl: %v", ErrUpstream, err)
	}
	write.prev, write.existed = prev, existed

	if len(acl) == 0 {
		if !existed {
			return out, write, nil
		}
		if err := c.acls.Delete(ctx, write.key); err != nil {
			return Meta{}, nil, fmt.Errorf("%w: delete acl: %v", ErrUpstream, err)
		}
		write.changed = true
		return out, write, nil
	}

	encoded, err := json.Marshal(acl)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("encode acl: %w", err)
	}
	if err := c.acls.Set(ctx, write.key, string(encoded)); err != nil {
		return Meta{}, nil, fmt.Errorf("%w: store acl: %v", ErrUpstream, err)
	}
	write.changed = true
	return out, write, nil
}

// ACLWrite records the side-store entry an object write replaced.
type ACLWrite struct {
	codec   *MetadataCodec
	key     string
	prev    string
	existed bool
	changed bool
}

// Revert puts back the entry that was there before the write.
func (w *ACLWrite) Revert(ctx context.Context) error {
	if w == nil || !w.changed {
		return nil
	}
	w.changed = false
	if w.existed {
		return w.codec.acls.Set(ctx, w.key, w.prev)
	}
	return w.codec.acls.Delete(ctx, w.key)
}

// FetchAndMergeACL looks up the ACL for bucket:key and attaches it to meta.
func (c *MetadataCodec) FetchAndMergeACL(ctx context.Context, meta Meta, bucket, key string) (Meta, error) {
	out := meta.Clone()
	if c.acls == nil {
		return out, nil
	}

	raw, ok, err := c.acls.Get(ctx, ACLKey(bucket, key))
	if err != nil {
		return Meta{}, fmt.Errorf("%w: fetch acl: %v", ErrUpstream, err)
	}
	if !ok || raw == "" {
		return out, nil
	}

	var acl []Attribute
	if err := json.Unmarshal([]byte(raw), &acl); err != nil {
		return Meta{}, fmt.Errorf("%w: acl: %v", ErrMetadataDecode, err)
	}
	out.ACL = acl
	return out, nil
}

// DeleteACL removes the ACL entry for bucket:key. Absence is not an error.
func (c *MetadataCodec) DeleteACL(ctx context.Context, bucket, key string) error {
	if c.acls == nil {
		return nil
	}
	return c.acls.Delete(ctx, ACLKey(bucket, key))
}

// EncodeTagging renders tags as "id=value&id=value", the only format the
// store's tagging API accepts. Order is preserved.
func EncodeTagging(tags []Tag) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, url.QueryEscape(t.ID)+"="+url.QueryEscape(t.Value))
	}
	return strings.Join(parts, "&")
}

// DecodeTagging parses an EncodeTagging string.
func DecodeTagging(s string) ([]Tag, error) {
	if s == "" {
		return nil, nil
	}
	var tags []Tag
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		id, value, _ := strings.Cut(part, "=")
		id, err := url.QueryUnescape(id)
		if err != nil {
			return nil, fmt.Errorf("%w: tag id: %v", ErrInvalidArgument, err)
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: tag value: %v", ErrInvalidArgument, err)
		}
		tags = append(tags, Tag{ID: id, Value: value})
	}
	return tags, nil
}

func lookupField(metadata map[string]string, name string) (string, bool) {
	if v, ok := metadata[name]; ok {
		return v, true
	}
	for k, v := range metadata {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// asciiJSON escapes every non-ASCII rune of a JSON document as \uXXXX.
// S3 user metadata only round-trips US-ASCII.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r < utf8.RuneSelf {
			sb.WriteByte(byte(r))
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			fmt.Fprintf(&sb, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&sb, `\u%04x`, r)
	}
	return sb.String()
}

// dataPrefix marks a base64-encoded data field. No JSON text starts with it.
const dataPrefix = "base64:"

// Field renders d as a metadata or header value. Printable ASCII JSON is kept
// as is; anything else is base64-encoded behind dataPrefix so it survives
// byte for byte.
func (d Data) Field() string {
	if json.Valid(d) && printableASCII(d) {
		return string(d)
	}
	return dataPrefix + base64.StdEncoding.EncodeToString(d)
}

// ParseDataField reverses Data.Field. Values without the prefix are taken
// verbatim.
func ParseDataField(s string) (Data, error) {
	encoded, ok := strings.CutPrefix(s, dataPrefix)
	if !ok {
		return Data(s), nil
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return b, nil
}

func printableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
