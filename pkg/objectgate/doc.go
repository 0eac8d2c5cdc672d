// Package objectgate provides an authorization-gated gateway in front of an
// S3-compatible object store.
//
// A single Service exposes list, get, put, delete, copy and move. Every
// operation is checked against an external decision service (Authorizer)
// before any object-store mutation, and every object carries an application
// level envelope (structured meta, free-form data, writer identity) that the
// object store cannot express natively.
//
// Envelope Storage
//
// The envelope is JSON-encoded into three string-valued user metadata fields
// on the object ("meta", "data", "subjectid"). Access-control lists are not
// embedded; they live in an ACLStore under "bucket:key" and are reattached on
// read. Decoding is tolerant: an absent field yields an empty value, never an
// error, because objects may be written without going through the gateway.
//
// Collaborators (ObjectStore, ACLStore, Authorizer, EventEmitter) are
// provided under subpackages: storage/memory, storage/s3, aclstore/memory,
// aclstore/redis, aclstore/postgres, authz and events.
package objectgate
