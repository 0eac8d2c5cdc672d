package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Headers carrying the object envelope on get and put
const (
	HeaderObjectMeta    = "X-Object-Meta"
	HeaderObjectData    = "X-Object-Data"
	HeaderObjectTagging = "X-Object-Tagging"
	HeaderObjectWriter  = "X-Object-Writer"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := objectgate.ListRequest{
		Bucket:  q.Get("bucket"),
		Prefix:  q.Get("prefix"),
		Subject: SubjectFromContext(r.Context()),
	}
	if raw := q.Get("max_keys"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 0 {
			s.badRequest(w, r, "list", "max_keys must be a non-negative integer")
			return
		}
		req.MaxKeys = int32(n)
	}
	if owner := q.Get("owner_instance"); owner != "" {
		req.Filter = &objectgate.Filter{
			Field:     objectgate.FilterFieldOwnerInstance,
			Operation: objectgate.FilterEq,
			Value:     owner,
		}
	}

	res := s.service.List(r.Context(), req)
	s.writeResult(w, r, "list", res.OperationStatus, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := s.target(w, r, "get")
	if !ok {
		return
	}
	download, _ := strconv.ParseBool(r.URL.Query().Get("download"))

	started := false
	var sent int64
	for ev := range s.service.Get(r.Context(), objectgate.GetRequest{
		Bucket:   bucket,
		Key:      key,
		Download: download,
		Subject:  SubjectFromContext(r.Context()),
	}) {
		if !ev.Status.OK() {
			if !started {
				s.writeResult(w, r, "get", ev.Status, map[string]objectgate.Status{"operation_status": ev.Status})
				return
			}
			// Headers are gone; abort so the client sees a truncated body
			s.logger.Error("Failed to stream object", "bucket", bucket, "key", key, "sent", sent, "err", ev.Status.Message)
			s.metrics.observe("get", ev.Status.Code)
			panic(http.ErrAbortHandler)
		}

		if !started {
			started = true
			writeObjectHeaders(w.Header(), ev.Payload)
			w.WriteHeader(http.StatusOK)
		}
		n, err := w.Write(ev.Payload.Object)
		sent += int64(n)
		if err != nil {
			s.logger.Warn("Client went away during download", "bucket", bucket, "key", key, "err", err)
			break
		}
		_ = http.NewResponseController(w).Flush()
	}
	s.metrics.addBytes("out", sent)
	s.metrics.observe("get", objectgate.CodeOK)
}

func writeObjectHeaders(h http.Header, chunk *objectgate.ObjectChunk) {
	if opts := chunk.Options; opts != nil {
		setIf(h, "Content-Type", opts.ContentType)
		setIf(h, "Content-Encoding", opts.ContentEncoding)
		setIf(h, "Content-Language", opts.ContentLanguage)
		setIf(h, "Content-Disposition", opts.ContentDisposition)
		if len(opts.Tags) > 0 {
			h.Set(HeaderObjectTagging, objectgate.EncodeTagging(opts.Tags))
		}
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}
	if meta, err := json.Marshal(chunk.Meta); err == nil {
		h.Set(HeaderObjectMeta, string(meta))
	}
	if len(chunk.Data) > 0 {
		h.Set(HeaderObjectData, chunk.Data.Field())
	}
	setIf(h, HeaderObjectWriter, chunk.WriterSubjectID)
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key, err := wildcardKey(r)
	if err != nil {
		s.badRequest(w, r, "put", err.Error())
		return
	}

	first := &objectgate.PutChunk{
		Bucket:  bucket,
		Key:     key,
		Subject: SubjectFromContext(r.Context()),
		Options: &objectgate.Options{
			ContentType:        r.Header.Get("Content-Type"),
			ContentEncoding:    r.Header.Get("Content-Encoding"),
			ContentLanguage:    r.Header.Get("Content-Language"),
			ContentDisposition: r.Header.Get("Content-Disposition"),
		},
	}
	if raw := r.Header.Get(HeaderObjectMeta); raw != "" {
		var meta objectgate.Meta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			s.badRequest(w, r, "put", HeaderObjectMeta+" is not valid JSON")
			return
		}
		first.Meta = &meta
	}
	if raw := r.Header.Get(HeaderObjectData); raw != "" {
		data, err := objectgate.ParseDataField(raw)
		if err != nil {
			s.badRequest(w, r, "put", HeaderObjectData+" is not valid base64")
			return
		}
		first.Data = data
	}
	if raw := r.Header.Get(HeaderObjectTagging); raw != "" {
		tags, err := objectgate.DecodeTagging(raw)
		if err != nil {
			s.badRequest(w, r, "put", err.Error())
			return
		}
		first.Options.Tags = tags
	}

	res := s.service.Put(r.Context(), objectgate.NewReaderStream(first, r.Body, s.uploadChunk))
	if res.Payload != nil {
		s.metrics.addBytes("in", res.Payload.Length)
	}
	s.writeResult(w, r, "put", res.OperationStatus, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := s.target(w, r, "delete")
	if !ok {
		return
	}
	res := s.service.Delete(r.Context(), objectgate.DeleteRequest{
		Bucket:  bucket,
		Key:     key,
		Subject: SubjectFromContext(r.Context()),
	})
	s.writeResult(w, r, "delete", res.OperationStatus, res)
}

func (s *Server) target(w http.ResponseWriter, r *http.Request, operation string) (string, string, bool) {
	key, err := wildcardKey(r)
	if err != nil {
		s.badRequest(w, r, operation, err.Error())
		return "", "", false
	}
	return chi.URLParam(r, "bucket"), key, true
}

// wildcardKey returns the decoded object key. chi matches on the raw path
// when the request carries escapes, so the wildcard may still be encoded.
func wildcardKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key, nil
	}
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return "", errors.New("object key is not a valid escaped path")
	}
	return decoded, nil
}
