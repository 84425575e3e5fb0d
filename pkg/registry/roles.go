package registry

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

// roleRecord is the DynamoDB shape of a role registry entry. Policy
// holds the "bucket:key" reference to the permission document.
type roleRecord struct {
	Role      string `dynamodbav:"Role"`
	Policy    string `dynamodbav:"Policy"`
	Group     string `dynamodbav:"AccountGroup"`
	Status    string `dynamodbav:"Status"`
	Timestamp int64  `dynamodbav:"Timestamp"`
}

func (r roleRecord) role() (crossaccount.Role, error) {
	ref, err := crossaccount.ParsePolicyRef(r.Policy)
	if err != nil {
		return crossaccount.Role{}, err
	}
	return crossaccount.Role{
		Name:      r.Role,
		PolicyRef: ref,
		Group:     r.Group,
		Status:    crossaccount.Status(r.Status),
		UpdatedAt: time.UnixMilli(r.Timestamp),
	}, nil
}

// RoleStore implements crossaccount.RoleStore on a DynamoDB table.
type RoleStore struct {
	db    DynamoAPI
	table string
}

// NewRoleStore creates a store backed by the named table.
func NewRoleStore(db DynamoAPI, table string) *RoleStore {
	return &RoleStore{db: db, table: table}
}

// Get implements crossaccount.RoleStore.
func (s *RoleStore) Get(ctx context.Context, name string) (*crossaccount.Role, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"Role": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return nil, crossaccount.ErrRemote("get role").WithCause(err).WithResource("role", name)
	}
	if len(out.Item) == 0 {
		return nil, crossaccount.ErrNotFound("role", name)
	}
	var rec roleRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, crossaccount.ErrInternal("decode role").WithCause(err).WithResource("role", name)
	}
	role, err := rec.role()
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Put implements crossaccount.RoleStore.
func (s *RoleStore) Put(ctx context.Context, r crossaccount.Role) error {
	item, err := attributevalue.MarshalMap(roleRecord{
		Role:      r.Name,
		Policy:    r.PolicyRef.String(),
		Group:     r.Group,
		Status:    string(r.Status),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return crossaccount.ErrInternal("encode role").WithCause(err).WithResource("role", r.Name)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return crossaccount.ErrRemote("put role").WithCause(err).WithResource("role", r.Name)
	}
	return nil
}

// ListActiveForGroup implements crossaccount.RoleStore. Wildcard roles
// apply to every group, so they match any argument; a wildcard argument
// matches only wildcard roles.
func (s *RoleStore) ListActiveForGroup(ctx context.Context, group string) ([]crossaccount.Role, error) {
	groupMatch := expression.Name("AccountGroup").Equal(expression.Value(crossaccount.DefaultGroup))
	if group != crossaccount.DefaultGroup {
		groupMatch = groupMatch.Or(expression.Name("AccountGroup").Equal(expression.Value(group)))
	}
	filter := expression.Name("Status").Equal(expression.Value(string(crossaccount.StatusActive))).And(groupMatch)
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, crossaccount.ErrInternal("build role filter").WithCause(err)
	}

	var roles []crossaccount.Role
	err = scanAll(ctx, s.db, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, func(items []map[string]types.AttributeValue) error {
		var recs []roleRecord
		if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
			return crossaccount.ErrInternal("decode roles").WithCause(err)
		}
		for _, rec := range recs {
			role, err := rec.role()
			if err != nil {
				return err
			}
			roles = append(roles, role)
		}
		return nil
	})
	if err != nil {
		var xerr *crossaccount.Error
		if errors.As(err, &xerr) {
			return nil, err
		}
		return nil, crossaccount.ErrRemote("scan roles").WithCause(err)
	}
	return roles, nil
}
