// Package identity implements the identity-plane operations for managed
// roles: creating and removing roles with inline trust and permission
// policies, in the home account or in a member account via delegated
// temporary credentials.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

// PolicySuffix is appended to a role name to form its inline permission
// policy name.
const PolicySuffix = "-Permission"

// IAMAPI abstracts the IAM operations the service consumes.
type IAMAPI interface {
	GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	GetRolePolicy(ctx context.Context, in *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, in *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
}

// STSAPI abstracts the STS operations the service consumes.
type STSAPI interface {
	AssumeRole(ctx context.Context, in *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Service implements crossaccount.IdentityService on the AWS SDK.
type Service struct {
	iam    IAMAPI
	sts    STSAPI
	scoped func(crossaccount.Credentials) IAMAPI
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClients overrides the IAM and STS clients. Mainly useful for tests.
func WithClients(iamAPI IAMAPI, stsAPI STSAPI, scoped func(crossaccount.Credentials) IAMAPI) Option {
	return func(s *Service) {
		s.iam = iamAPI
		s.sts = stsAPI
		s.scoped = scoped
	}
}

// New creates a Service from an AWS configuration. The default clients
// operate in the configuration's own account; WithCredentials rescopes
// into a member account.
func New(cfg aws.Config, opts ...Option) *Service {
	s := &Service{
		iam: iam.NewFromConfig(cfg),
		sts: sts.NewFromConfig(cfg),
		scoped: func(creds crossaccount.Credentials) IAMAPI {
			return iam.NewFromConfig(cfg, func(o *iam.Options) {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
				)
			})
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithCredentials implements crossaccount.IdentityService. The returned
// service runs every IAM call under the delegated credentials; the
// receiver is left untouched.
func (s *Service) WithCredentials(creds crossaccount.Credentials) crossaccount.IdentityService {
	return &Service{
		iam:    s.scoped(creds),
		sts:    s.sts,
		scoped: s.scoped,
		logger: s.logger,
	}
}

// CreateRole implements crossaccount.IdentityService.
func (s *Service) CreateRole(ctx context.Context, name, trustPolicy, inlinePolicy string) error {
	_, err := s.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil {
		return crossaccount.ErrRemote("create role").WithCause(err).WithResource("iam:role", name)
	}
	s.logger.Info("created role", "role", name)

	if inlinePolicy == "" {
		return nil
	}
	if err := s.PutRolePolicy(ctx, name, inlinePolicy); err != nil {
		return err
	}
	return nil
}

// DeleteRole implements crossaccount.IdentityService. A role that does
// not exist is left alone without error; an existing role loses its
// inline policy first, since IAM refuses to delete a role that still has
// one.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	_, err := s.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if isNotFound(err) {
		s.logger.Info("role absent, nothing to delete", "role", name)
		return nil
	}
	if err != nil {
		return crossaccount.ErrRemote("get role").WithCause(err).WithResource("iam:role", name)
	}

	if err := s.DeleteRolePolicy(ctx, name); err != nil {
		return err
	}
	if _, err := s.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return crossaccount.ErrRemote("delete role").WithCause(err).WithResource("iam:role", name)
	}
	s.logger.Info("deleted role", "role", name)
	return nil
}

// GetRolePolicy implements crossaccount.IdentityService. IAM returns the
// document URL-encoded; the decoded form is returned.
func (s *Service) GetRolePolicy(ctx context.Context, roleName string) (string, error) {
	out, err := s.iam.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(roleName + PolicySuffix),
	})
	if isNotFound(err) {
		return "", crossaccount.ErrNotFound("iam:role-policy", roleName+PolicySuffix)
	}
	if err != nil {
		return "", crossaccount.ErrRemote("get role policy").WithCause(err).WithResource("iam:role", roleName)
	}
	doc, err := url.QueryUnescape(aws.ToString(out.PolicyDocument))
	if err != nil {
		return "", crossaccount.ErrInternal("decode role policy").WithCause(err).WithResource("iam:role", roleName)
	}
	return doc, nil
}

// PutRolePolicy implements crossaccount.IdentityService.
func (s *Service) PutRolePolicy(ctx context.Context, roleName, policy string) error {
	_, err := s.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(roleName + PolicySuffix),
		PolicyDocument: aws.String(policy),
	})
	if err != nil {
		return crossaccount.ErrRemote("put role policy").WithCause(err).WithResource("iam:role", roleName)
	}
	s.logger.Info("updated role policy", "role", roleName)
	return nil
}

// DeleteRolePolicy implements crossaccount.IdentityService. Absence of
// the policy is not an error.
func (s *Service) DeleteRolePolicy(ctx context.Context, roleName string) error {
	_, err := s.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(roleName + PolicySuffix),
	})
	if err != nil && !isNotFound(err) {
		return crossaccount.ErrRemote("delete role policy").WithCause(err).WithResource("iam:role", roleName)
	}
	return nil
}

// AssumeRole implements crossaccount.IdentityService.
func (s *Service) AssumeRole(ctx context.Context, roleARN, sessionName string) (crossaccount.Credentials, error) {
	out, err := s.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
	})
	if err != nil {
		return crossaccount.Credentials{}, crossaccount.ErrRemote("assume role").
			WithCause(err).WithResource("iam:role", roleARN)
	}
	c := out.Credentials
	return crossaccount.Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Expiration:      aws.ToTime(c.Expiration),
	}, nil
}

// isNotFound reports whether err is IAM's missing-entity error.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nse *iamtypes.NoSuchEntityException
	if errors.As(err, &nse) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchEntity"
}
