package crossaccount

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Ingestor consumes uploaded definition files: it seeds the Accounts and
// Roles registries, manages publish permission on the account topic,
// provisions the home-account copy of each role and emits the initial
// provisioning requests.
//
// Processing a file is at-most-once locally: the source object is deleted
// only after the file was fully applied, so a failed invocation leaves it
// in place for the scheduled retry consumer.
type Ingestor struct {
	cfg       *Config
	accounts  AccountStore
	roles     RoleStore
	bindings  BindingStore
	identity  IdentityService
	publisher Publisher
	blobs     BlobStore
	waiter    Waiter
	logger    *slog.Logger
}

// IngestorOption configures the Ingestor.
type IngestorOption func(*Ingestor)

// WithIngestorLogger sets the logger.
func WithIngestorLogger(l *slog.Logger) IngestorOption {
	return func(i *Ingestor) { i.logger = l }
}

// WithIngestorWaiter sets the settling-delay waiter.
func WithIngestorWaiter(w Waiter) IngestorOption {
	return func(i *Ingestor) { i.waiter = w }
}

// NewIngestor creates an Ingestor.
func NewIngestor(cfg *Config, accounts AccountStore, roles RoleStore, bindings BindingStore,
	identity IdentityService, publisher Publisher, blobs BlobStore, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		cfg:       cfg,
		accounts:  accounts,
		roles:     roles,
		bindings:  bindings,
		identity:  identity,
		publisher: publisher,
		blobs:     blobs,
		waiter:    NewTimerWaiter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// HandleAccountFile processes an uploaded account definition file: grants
// the declared accounts publish permission on the account topic (replacing
// any prior grant) and upserts each Account row. Already-active accounts
// stay active; everything else becomes pending.
func (i *Ingestor) HandleAccountFile(ctx context.Context, bucket, key string) error {
	def, err := i.readDefinition(ctx, bucket, key)
	if err != nil {
		return err
	}
	if len(def.Accounts) == 0 {
		return ErrValidation(fmt.Sprintf("no accounts in %s/%s", bucket, key))
	}

	ids := sortedKeys(def.Accounts)
	topic := i.cfg.AccountTopic()
	i.logger.Info("granting publish permission", "topic", topic, "accounts", ids)
	if err := i.publisher.ReplacePublishPermission(ctx, topic, ids); err != nil {
		return err
	}

	for _, id := range ids {
		props := def.Accounts[id]
		status := StatusPending
		existing, err := i.accounts.Get(ctx, id)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if existing != nil && existing.Status == StatusActive {
			status = StatusActive
		}

		i.logger.Info("storing account", "account", id, "status", status)
		if err := i.accounts.Put(ctx, Account{
			ID:     id,
			Email:  props.Email,
			Group:  group(props.AccountGroup),
			Status: status,
		}); err != nil {
			return err
		}
	}

	return i.blobs.Delete(ctx, bucket, key)
}

// rolePlan is one validated role entry, ready to apply.
type rolePlan struct {
	name   string
	action Action
	policy string
	group  string
}

// HandleRoleFile processes an uploaded role definition file. The whole
// batch is validated before anything is applied; the first invalid entry
// aborts the file. Entries already applied when a later entry fails are
// not rolled back.
func (i *Ingestor) HandleRoleFile(ctx context.Context, bucket, key string) error {
	def, err := i.readDefinition(ctx, bucket, key)
	if err != nil {
		return err
	}
	if len(def.Roles) == 0 {
		return ErrValidation(fmt.Sprintf("no roles in %s/%s", bucket, key))
	}

	plans := make([]rolePlan, 0, len(def.Roles))
	for _, suffix := range sortedKeys(def.Roles) {
		entry := def.Roles[suffix]
		plan, err := i.planRole(suffix, entry)
		if err != nil {
			return err
		}
		plans = append(plans, plan)
	}

	for _, plan := range plans {
		if err := i.applyRole(ctx, bucket, plan); err != nil {
			return err
		}
	}

	return i.blobs.Delete(ctx, bucket, key)
}

// planRole validates one role entry.
func (i *Ingestor) planRole(suffix string, entry RoleDefinition) (rolePlan, error) {
	action, err := ParseAction(entry.Action)
	if err != nil {
		return rolePlan{}, err
	}
	if entry.Policy == "" {
		return rolePlan{}, ErrValidation(fmt.Sprintf("missing policy for role %q", suffix))
	}
	name := i.cfg.RoleName(suffix)
	if len(name) > MaxRoleNameLength {
		return rolePlan{}, ErrValidation(fmt.Sprintf("role name %q exceeds %d characters", name, MaxRoleNameLength))
	}
	return rolePlan{
		name:   name,
		action: action,
		policy: entry.Policy,
		group:  group(entry.AccountGroup),
	}, nil
}

// applyRole provisions one role in the home account, records it in the
// registries and fans out a provisioning request per member account.
func (i *Ingestor) applyRole(ctx context.Context, bucket string, plan rolePlan) error {
	members, err := i.accounts.ListActiveByGroup(ctx, plan.group)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(members))
	for _, a := range members {
		ids = append(ids, a.ID)
	}
	i.logger.Info("applying role", "role", plan.name, "action", plan.action, "group", plan.group, "accounts", ids)

	roleStatus := StatusDeleted
	if plan.action == ActionAdd {
		roleStatus = StatusActive
	}

	// Delete-then-recreate makes re-processing the same entry idempotent.
	if err := i.identity.DeleteRole(ctx, plan.name); err != nil {
		return err
	}
	if plan.action == ActionAdd {
		if err := i.waiter.Wait(ctx, i.cfg.HomeSettleDelay); err != nil {
			return err
		}
		trust, err := BuildServiceTrustPolicy(i.cfg.HomeTrustService).Marshal()
		if err != nil {
			return err
		}
		var inline string
		if doc := BuildAssumeRolePolicy(plan.name, ids); doc != nil {
			if inline, err = doc.Marshal(); err != nil {
				return err
			}
		}
		if err := i.identity.CreateRole(ctx, plan.name, trust, inline); err != nil {
			return err
		}
	}

	if err := i.roles.Put(ctx, Role{
		Name:      plan.name,
		PolicyRef: PolicyRef{Bucket: bucket, Key: plan.policy},
		Group:     plan.group,
		Status:    roleStatus,
	}); err != nil {
		return err
	}

	body, err := i.blobs.Get(ctx, bucket, i.cfg.PolicyPrefix+plan.policy)
	if err != nil {
		return err
	}

	bindingStatus := StatusDeleting
	if plan.action == ActionAdd {
		bindingStatus = StatusPending
	}
	for _, id := range ids {
		if err := i.bindings.Put(ctx, Binding{Role: plan.name, AccountID: id, Status: bindingStatus}); err != nil {
			return err
		}
		if err := i.publisher.Publish(ctx, i.cfg.RoleTopic(), ProvisionRequest{
			Action:       plan.action,
			SubAccountID: id,
			Role:         plan.name,
			Policy:       string(body),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (i *Ingestor) readDefinition(ctx context.Context, bucket, key string) (*Definition, error) {
	data, err := i.blobs.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(data)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
