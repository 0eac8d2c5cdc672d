package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// maxBatchItems caps the items accepted by one copy or move request
const maxBatchItems = 1000

// CopyRequest is the request body for POST /v1/copy
type CopyRequest struct {
	Items []objectgate.CopyItem `json:"items"`
}

// MoveRequest is the request body for POST /v1/move
type MoveRequest struct {
	Items []objectgate.MoveItem `json:"items"`
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.badRequest(w, r, "copy", "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) > maxBatchItems {
		s.badRequest(w, r, "copy", "too many items")
		return
	}

	res := s.service.Copy(r.Context(), objectgate.CopyRequest{
		Items:   req.Items,
		Subject: SubjectFromContext(r.Context()),
	})
	s.writeResult(w, r, "copy", res.OperationStatus, res)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.badRequest(w, r, "move", "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) > maxBatchItems {
		s.badRequest(w, r, "move", "too many items")
		return
	}

	res := s.service.Move(r.Context(), objectgate.MoveRequest{
		Items:   req.Items,
		Subject: SubjectFromContext(r.Context()),
	})
	s.writeResult(w, r, "move", res.OperationStatus, res)
}
