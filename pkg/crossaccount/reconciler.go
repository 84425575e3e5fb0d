package crossaccount

import (
	"context"
	"log/slog"
)

// Reconciler consumes account lifecycle events. For each event it updates
// the Accounts registry, then edits the resource list of every role
// applicable to the account's group, updates the Bindings registry, and on
// ADD re-emits a provisioning request for the account.
//
// The handler tolerates duplicate delivery: every step is an idempotent
// upsert or a set-semantics list edit, and the Provisioner treats repeated
// requests idempotently.
type Reconciler struct {
	cfg       *Config
	accounts  AccountStore
	roles     RoleStore
	bindings  BindingStore
	identity  IdentityService
	publisher Publisher
	blobs     BlobStore
	logger    *slog.Logger
}

// ReconcilerOption configures the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg *Config, accounts AccountStore, roles RoleStore, bindings BindingStore,
	identity IdentityService, publisher Publisher, blobs BlobStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cfg:       cfg,
		accounts:  accounts,
		roles:     roles,
		bindings:  bindings,
		identity:  identity,
		publisher: publisher,
		blobs:     blobs,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleAccountEvent processes one lifecycle event.
func (r *Reconciler) HandleAccountEvent(ctx context.Context, event LifecycleEvent) error {
	action, err := ParseAction(string(event.Action))
	if err != nil {
		return err
	}
	if event.SubAccountID == "" {
		return ErrValidation("lifecycle event missing SubAccountId")
	}
	r.logger.Info("account event", "action", action, "account", event.SubAccountID)

	account, err := r.accounts.Get(ctx, event.SubAccountID)
	if err != nil {
		return err
	}

	status := StatusDeleted
	if action == ActionAdd {
		status = StatusActive
	}
	account.Status = status
	if err := r.accounts.Put(ctx, *account); err != nil {
		return err
	}

	matched, err := r.roles.ListActiveForGroup(ctx, account.Group)
	if err != nil {
		return err
	}

	for _, role := range matched {
		if err := r.reconcileRole(ctx, action, account.ID, role); err != nil {
			return err
		}
	}
	return nil
}

// reconcileRole edits one role's home-account resource list for the
// account and records the resulting binding.
func (r *Reconciler) reconcileRole(ctx context.Context, action Action, accountID string, role Role) error {
	arn := RoleARN(accountID, role.Name)

	raw, err := r.identity.GetRolePolicy(ctx, role.Name)
	switch {
	case IsNotFound(err):
		// No policy yet: ADD creates one holding just this account,
		// REMOVE has nothing to take out.
		if action == ActionAdd {
			doc, err := BuildAssumeRolePolicy(role.Name, []string{accountID}).Marshal()
			if err != nil {
				return err
			}
			r.logger.Info("creating role policy", "role", role.Name, "resource", arn)
			if err := r.identity.PutRolePolicy(ctx, role.Name, doc); err != nil {
				return err
			}
		}
	case err != nil:
		return err
	default:
		doc, err := ParsePolicyDocument(raw)
		if err != nil {
			return err
		}
		if action == ActionAdd {
			doc.AddResource(arn)
			r.logger.Info("adding resource", "role", role.Name, "resource", arn)
			if err := r.putPolicy(ctx, role.Name, doc); err != nil {
				return err
			}
		} else {
			doc.RemoveResource(arn)
			r.logger.Info("removing resource", "role", role.Name, "resource", arn)
			if doc.Empty() {
				if err := r.identity.DeleteRolePolicy(ctx, role.Name); err != nil {
					return err
				}
			} else if err := r.putPolicy(ctx, role.Name, doc); err != nil {
				return err
			}
		}
	}

	bindingStatus := StatusDeleted
	if action == ActionAdd {
		bindingStatus = StatusPending
	}
	if err := r.bindings.Put(ctx, Binding{Role: role.Name, AccountID: accountID, Status: bindingStatus}); err != nil {
		return err
	}

	if action != ActionAdd {
		return nil
	}
	body, err := r.blobs.Get(ctx, role.PolicyRef.Bucket, r.cfg.PolicyPrefix+role.PolicyRef.Key)
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, r.cfg.RoleTopic(), ProvisionRequest{
		Action:       action,
		SubAccountID: accountID,
		Role:         role.Name,
		Policy:       string(body),
	})
}

func (r *Reconciler) putPolicy(ctx context.Context, roleName string, doc *PolicyDocument) error {
	raw, err := doc.Marshal()
	if err != nil {
		return err
	}
	return r.identity.PutRolePolicy(ctx, roleName, raw)
}
