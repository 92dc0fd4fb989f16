package models

import "context"

// Verifier is the one-time-code collaborator gating destructive operations
// (module deletion). The implementation lives outside this service; handlers
// receive whatever adapter the deployment wires in.
type Verifier interface {
	SendCode(ctx context.Context, purpose string) error
	VerifyCode(ctx context.Context, code string) (bool, error)
}
