// Package provision orchestrates invite-gated registration: claiming the
// invite code, creating the local account, and provisioning access on remote
// collaborators.
package provision

import "context"

// Provisioner grants a newly registered account access on a remote
// collaborator system. Implementations must honor context deadlines and
// surface failures as errors, never as panics.
type Provisioner interface {
	Provision(ctx context.Context, email, username, password string) error
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(ctx context.Context, email, username, password string) error

// Provision calls the wrapped function.
func (f ProvisionerFunc) Provision(ctx context.Context, email, username, password string) error {
	return f(ctx, email, username, password)
}
