package objectgate

import "context"

// AllowAll is an Authorizer that permits everything. It is what the service
// runs with when authorization is disabled.
type AllowAll struct{}

// Decide always returns PERMIT without scoping constraints
func (AllowAll) Decide(ctx context.Context, subject *Subject, resources []Resource, action Action, mode Mode) Decision {
	return Decision{Effect: Permit, Status: okStatus()}
}

// ResolveIdentity returns an empty subject id
func (AllowAll) ResolveIdentity(ctx context.Context, token string) (string, error) {
	return "", nil
}

// NoopEmitter is a no-operation implementation of EventEmitter
type NoopEmitter struct{}

// Emit does nothing and returns nil
func (NoopEmitter) Emit(ctx context.Context, topic, event string, payload any) error {
	return nil
}
