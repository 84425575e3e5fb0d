package crossaccount

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Provisioner consumes role-provisioning requests and realizes them in the
// target member account using delegated temporary credentials.
//
// A request is processed delete-first: any pre-existing role of the same
// name is removed, a settling delay absorbs the identity plane's deletion
// propagation, and only then is the role recreated. The Bindings registry
// is updated only after the remote operation succeeded, so a mid-failure
// commits no partial binding state.
type Provisioner struct {
	cfg       *Config
	bindings  BindingStore
	identity  IdentityService
	publisher Publisher
	waiter    Waiter
	logger    *slog.Logger
}

// ProvisionerOption configures the Provisioner.
type ProvisionerOption func(*Provisioner)

// WithProvisionerLogger sets the logger.
func WithProvisionerLogger(l *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) { p.logger = l }
}

// WithProvisionerWaiter sets the settling-delay waiter.
func WithProvisionerWaiter(w Waiter) ProvisionerOption {
	return func(p *Provisioner) { p.waiter = w }
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(cfg *Config, bindings BindingStore, identity IdentityService,
	publisher Publisher, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		cfg:       cfg,
		bindings:  bindings,
		identity:  identity,
		publisher: publisher,
		waiter:    NewTimerWaiter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleRoleEvent processes one provisioning request.
func (p *Provisioner) HandleRoleEvent(ctx context.Context, req ProvisionRequest) error {
	action, err := ParseAction(string(req.Action))
	if err != nil {
		return err
	}
	if req.SubAccountID == "" || req.Role == "" {
		return ErrValidation("provisioning request missing SubAccountId or Role")
	}
	p.logger.Info("role event", "action", action, "account", req.SubAccountID, "role", req.Role)

	adminARN := RoleARN(req.SubAccountID, p.cfg.AdminRole)
	creds, err := p.identity.AssumeRole(ctx, adminARN, p.sessionName())
	if err != nil {
		return err
	}
	target := p.identity.WithCredentials(creds)

	if err := target.DeleteRole(ctx, req.Role); err != nil {
		return err
	}

	if action == ActionRemove {
		return p.bindings.Put(ctx, Binding{Role: req.Role, AccountID: req.SubAccountID, Status: StatusDeleted})
	}

	if err := p.waiter.Wait(ctx, p.cfg.SubSettleDelay); err != nil {
		return err
	}

	// The member-account copy trusts only the home account's role of the
	// same name.
	trust, err := BuildAccountTrustPolicy(RoleARN(p.cfg.HomeAccountID, req.Role)).Marshal()
	if err != nil {
		return err
	}
	if err := target.CreateRole(ctx, req.Role, trust, req.Policy); err != nil {
		return err
	}

	if err := p.bindings.Put(ctx, Binding{Role: req.Role, AccountID: req.SubAccountID, Status: StatusActive}); err != nil {
		return err
	}

	return p.publisher.Publish(ctx, p.cfg.LinkTopic(), LinkEvent{
		Action:       action,
		SubAccountID: req.SubAccountID,
		Role:         req.Role,
	})
}

// sessionName builds a unique STS session name within the 64-character
// limit.
func (p *Provisioner) sessionName() string {
	return fmt.Sprintf("%s-provision-%s", p.cfg.HomeAccountID, uuid.NewString()[:8])
}
