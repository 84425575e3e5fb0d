package crossaccount

import (
	"context"
	"time"
)

// AccountStore is the Accounts registry.
type AccountStore interface {
	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (*Account, error)

	// Put upserts an account row.
	Put(ctx context.Context, account Account) error

	// ListActiveByGroup returns active accounts whose group exactly
	// matches the query. "*" is the ungrouped partition, so a "*" query
	// returns only accounts that belong to no group.
	ListActiveByGroup(ctx context.Context, group string) ([]Account, error)
}

// RoleStore is the Roles registry.
type RoleStore interface {
	// Get retrieves a role by name.
	Get(ctx context.Context, name string) (*Role, error)

	// Put upserts a role row.
	Put(ctx context.Context, role Role) error

	// ListActiveForGroup returns active roles applicable to a group:
	// roles whose group equals the query value or is "*".
	ListActiveForGroup(ctx context.Context, group string) ([]Role, error)
}

// BindingStore is the Bindings registry.
type BindingStore interface {
	// Put upserts a binding row, keyed by (role, account).
	Put(ctx context.Context, binding Binding) error

	// ListActive returns all active bindings. This is the view the
	// external access-links generator reads.
	ListActive(ctx context.Context) ([]Binding, error)
}

// IdentityService performs role and inline-policy operations against the
// remote identity plane. Implementations scope calls to one account: the
// home account by default, or a member account via WithCredentials.
type IdentityService interface {
	// CreateRole creates a role with the given trust policy document and,
	// when inlinePolicy is non-empty, attaches it as the role's inline
	// permission policy.
	CreateRole(ctx context.Context, name, trustPolicy, inlinePolicy string) error

	// DeleteRole removes a role and its inline policy. Absence of the
	// role is not an error.
	DeleteRole(ctx context.Context, name string) error

	// GetRolePolicy returns the role's inline permission policy document.
	// Returns a not_found error when the role or policy does not exist.
	GetRolePolicy(ctx context.Context, roleName string) (string, error)

	// PutRolePolicy creates or replaces the role's inline permission policy.
	PutRolePolicy(ctx context.Context, roleName, policy string) error

	// DeleteRolePolicy removes the role's inline permission policy.
	// Absence is not an error.
	DeleteRolePolicy(ctx context.Context, roleName string) error

	// AssumeRole acquires temporary credentials for the given role.
	AssumeRole(ctx context.Context, roleARN, sessionName string) (Credentials, error)

	// WithCredentials returns a service whose calls are authenticated with
	// the given delegated credentials. The receiver is not modified.
	WithCredentials(creds Credentials) IdentityService
}

// Publisher sends messages on pub/sub topics and manages who may publish
// to them.
type Publisher interface {
	// Publish marshals message as JSON and publishes it on the topic.
	Publish(ctx context.Context, topicARN string, message any) error

	// ReplacePublishPermission grants accountIDs permission to publish on
	// the topic, replacing any prior grant. The replacement is
	// remove-then-add, not atomic: a message arriving between the two
	// steps may be dropped and recovered by redelivery.
	ReplacePublishPermission(ctx context.Context, topicARN string, accountIDs []string) error
}

// BlobStore reads and deletes objects in blob storage.
type BlobStore interface {
	// Get returns the full object body.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Delete removes the object.
	Delete(ctx context.Context, bucket, key string) error
}

// Waiter interposes the settling delay between destructive and constructive
// remote operations. Implementations must honor context cancellation and
// must not block without it.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}
