package crossaccount

import (
	"context"
	"sync"
	"time"
)

// createCall records one CreateRole invocation.
type createCall struct {
	name         string
	trustPolicy  string
	inlinePolicy string
}

// fakeIdentity is an in-memory IdentityService recording every call.
type fakeIdentity struct {
	mu sync.Mutex

	created  []createCall
	deleted  []string
	policies map[string]string

	creds     Credentials
	assumeErr error
	createErr error
	assumed   []string
	target    *fakeIdentity
	gotCreds  []Credentials
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{policies: map[string]string{}}
}

func (f *fakeIdentity) CreateRole(ctx context.Context, name, trustPolicy, inlinePolicy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, createCall{name, trustPolicy, inlinePolicy})
	if inlinePolicy != "" {
		f.policies[name] = inlinePolicy
	}
	return nil
}

func (f *fakeIdentity) DeleteRole(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	delete(f.policies, name)
	return nil
}

func (f *fakeIdentity) GetRolePolicy(ctx context.Context, roleName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.policies[roleName]
	if !ok {
		return "", ErrNotFound("role-policy", roleName)
	}
	return doc, nil
}

func (f *fakeIdentity) PutRolePolicy(ctx context.Context, roleName, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[roleName] = policy
	return nil
}

func (f *fakeIdentity) DeleteRolePolicy(ctx context.Context, roleName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.policies, roleName)
	return nil
}

func (f *fakeIdentity) AssumeRole(ctx context.Context, roleARN, sessionName string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assumeErr != nil {
		return Credentials{}, f.assumeErr
	}
	f.assumed = append(f.assumed, roleARN)
	return f.creds, nil
}

func (f *fakeIdentity) WithCredentials(creds Credentials) IdentityService {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotCreds = append(f.gotCreds, creds)
	if f.target != nil {
		return f.target
	}
	return f
}

// published records one Publish invocation.
type published struct {
	topic   string
	payload any
}

// permGrant records one ReplacePublishPermission invocation.
type permGrant struct {
	topic string
	ids   []string
}

// fakePublisher records published messages and permission grants.
type fakePublisher struct {
	mu         sync.Mutex
	messages   []published
	grants     []permGrant
	publishErr error
	grantErr   error
}

func (f *fakePublisher) Publish(ctx context.Context, topicARN string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, published{topicARN, message})
	return nil
}

func (f *fakePublisher) ReplacePublishPermission(ctx context.Context, topicARN string, accountIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.grants = append(f.grants, permGrant{topicARN, accountIDs})
	return nil
}

// fakeBlobStore is an in-memory BlobStore keyed by "bucket/key".
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = body
}

func (f *fakeBlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrNotFound("object", bucket+"/"+key)
	}
	return body, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	f.deleted = append(f.deleted, bucket+"/"+key)
	return nil
}

// fakeWaiter records requested delays without sleeping.
type fakeWaiter struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeWaiter) Wait(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	return ctx.Err()
}

// testConfig returns a Config with the deployment defaults and no
// settling delays, suitable for handler tests.
func testConfig() *Config {
	return &Config{
		Region:           "us-east-1",
		HomeAccountID:    "999888777666",
		ConfigBucket:     "cam-config",
		AccountsTable:    "CrossAccountManager-Accounts",
		RolesTable:       "CrossAccountManager-Roles",
		BindingsTable:    "CrossAccountManager-Account-Roles",
		RolePrefix:       "CrossAccountManager-",
		AdminRole:        "CrossAccountManager-Admin-DO-NOT-DELETE",
		HomeTrustService: "ds.amazonaws.com",
		PolicyPrefix:     "custom_policy/",
	}
}
