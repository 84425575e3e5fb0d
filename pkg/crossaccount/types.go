package crossaccount

import (
	"fmt"
	"strings"
	"time"
)

// MaxRoleNameLength is the IAM limit on role names. Derived role names
// (prefix + suffix) longer than this are rejected during ingestion.
const MaxRoleNameLength = 64

// DefaultGroup is the group value for accounts that belong to no group.
// A role in this group applies only to ungrouped accounts; a role in a
// named group applies to that group's accounts.
const DefaultGroup = "*"

// Status is the lifecycle status of an account, role or binding.
type Status string

const (
	// StatusPending marks an entity that is declared but not yet provisioned.
	StatusPending Status = "pending"
	// StatusActive marks a fully provisioned entity.
	StatusActive Status = "active"
	// StatusDeleting marks a binding whose remote removal is in flight.
	StatusDeleting Status = "deleting"
	// StatusDeleted marks a logically removed entity. Rows are never
	// physically deleted, only transitioned here.
	StatusDeleted Status = "deleted"
)

// Action is the requested lifecycle transition carried by definition
// entries and pub/sub messages.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionRemove Action = "REMOVE"
)

// ParseAction normalizes and validates an action value.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(s)); a {
	case ActionAdd, ActionRemove:
		return a, nil
	default:
		return "", ErrValidation(fmt.Sprintf("invalid action %q: must be ADD or REMOVE", s))
	}
}

// Account is a member account managed by the system. Rows are created on
// first mention in a definition file and only ever status-transitioned.
type Account struct {
	ID        string    `json:"account_id"`
	Email     string    `json:"email"`
	Group     string    `json:"group"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a managed role definition: provisioned once in the home account
// and replicated into every member account its group resolves to.
type Role struct {
	Name      string    `json:"name"`
	PolicyRef PolicyRef `json:"policy_ref"`
	Group     string    `json:"group"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Binding is the provisioning state of one role within one account,
// composite-keyed by (Role, AccountID).
type Binding struct {
	Role      string    `json:"role"`
	AccountID string    `json:"account_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyRef locates a role's permission policy document in blob storage.
// Its wire form is "bucket:key".
type PolicyRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ParsePolicyRef parses the "bucket:key" locator form.
func ParsePolicyRef(s string) (PolicyRef, error) {
	bucket, key, ok := strings.Cut(s, ":")
	if !ok || bucket == "" || key == "" {
		return PolicyRef{}, ErrValidation(fmt.Sprintf("invalid policy locator %q: want bucket:key", s))
	}
	return PolicyRef{Bucket: bucket, Key: key}, nil
}

// String returns the "bucket:key" locator form.
func (r PolicyRef) String() string {
	return r.Bucket + ":" + r.Key
}

// LifecycleEvent is the account-topic message announcing that a member
// account joined or left the managed estate.
type LifecycleEvent struct {
	Action       Action `json:"Action"`
	SubAccountID string `json:"SubAccountId"`
}

// ProvisionRequest is the role-topic message asking for a role to be
// created or removed in a member account. Policy carries the inline
// permission policy document as a JSON string.
type ProvisionRequest struct {
	Action       Action `json:"Action"`
	SubAccountID string `json:"SubAccountId"`
	Role         string `json:"Role"`
	Policy       string `json:"Policy"`
}

// LinkEvent is the notification emitted after a role lands in a member
// account, consumed by the external access-links page generator.
type LinkEvent struct {
	Action       Action `json:"Action"`
	SubAccountID string `json:"SubAccountId"`
	Role         string `json:"Role"`
}

// Credentials are temporary delegated credentials for operating inside a
// member account. They are always passed explicitly into identity calls,
// never installed as process-wide defaults.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}
