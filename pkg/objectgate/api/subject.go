package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Headers carrying the caller identity alongside the bearer token
const (
	HeaderSubjectID    = "X-Subject-ID"
	HeaderSubjectScope = "X-Subject-Scope"
)

type contextKey string

const subjectKey contextKey = "subject"

// SubjectMiddleware builds the caller Subject from the bearer token and the
// subject headers. A request carrying none of them has no subject.
//
// X-Subject-ID is an assertion only a trusted upstream proxy may make: it is
// read when trustIDHeader is set and the request has no bearer token. With a
// token the identity always comes from resolving it.
func SubjectMiddleware(trustIDHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := &objectgate.Subject{
				Token: jwtauth.TokenFromHeader(r),
				Scope: strings.TrimSpace(r.Header.Get(HeaderSubjectScope)),
			}
			if trustIDHeader && subject.Token == "" {
				subject.ID = strings.TrimSpace(r.Header.Get(HeaderSubjectID))
			}
			if subject.ID == "" && subject.Token == "" && subject.Scope == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// WithSubject returns ctx carrying subject
func WithSubject(ctx context.Context, subject *objectgate.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the caller set by SubjectMiddleware, or nil
func SubjectFromContext(ctx context.Context) *objectgate.Subject {
	subject, _ := ctx.Value(subjectKey).(*objectgate.Subject)
	return subject
}
