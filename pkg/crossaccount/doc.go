// Package crossaccount provides the reconciliation core for cross-account
// role management.
//
// # Overview
//
// crossaccount converts declarative account and role definitions, plus
// asynchronous lifecycle notifications, into convergent state across three
// registries (accounts, roles, bindings) and into IAM roles and trust
// policies in the home and member accounts.
//
// # Core Concepts
//
// ## Registries
//
// Three logical tables track the managed estate:
//   - Accounts: member accounts and their lifecycle status
//   - Roles: managed role definitions and their policy locators
//   - Bindings: the provisioning status of one role in one account
//
// Registries are exposed through the AccountStore, RoleStore and
// BindingStore interfaces; pkg/registry provides the DynamoDB-backed
// implementations and this package provides in-memory ones.
//
// ## Handlers
//
// Three handlers drive reconciliation:
//   - Ingestor: consumes uploaded definition files and seeds the registries
//   - Reconciler: consumes account lifecycle events and edits each affected
//     role's trust policy in the home account
//   - Provisioner: consumes role-provisioning requests and creates or removes
//     the role in the target member account
//
// Every message may be delivered more than once and out of order, so all
// handler steps are idempotent upserts or set-semantics list edits. A handler
// that fails midway leaves the registries in a state that a redelivery can
// repair; redelivery by the invoking infrastructure is the only retry
// mechanism.
//
// # Extension
//
// Remote collaborators (identity plane, pub/sub, blob store) are consumed
// through small interfaces so that tests and alternative backends can be
// swapped in without touching the handlers.
package crossaccount
