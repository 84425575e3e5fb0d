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

// accountRecord is the DynamoDB shape of an account registry entry.
type accountRecord struct {
	AccountID string `dynamodbav:"AccountId"`
	Email     string `dynamodbav:"Email"`
	Group     string `dynamodbav:"AccountGroup"`
	Status    string `dynamodbav:"Status"`
	Timestamp int64  `dynamodbav:"Timestamp"`
}

func (r accountRecord) account() crossaccount.Account {
	return crossaccount.Account{
		ID:        r.AccountID,
		Email:     r.Email,
		Group:     r.Group,
		Status:    crossaccount.Status(r.Status),
		UpdatedAt: time.UnixMilli(r.Timestamp),
	}
}

// AccountStore implements crossaccount.AccountStore on a DynamoDB table.
type AccountStore struct {
	db    DynamoAPI
	table string
}

// NewAccountStore creates a store backed by the named table.
func NewAccountStore(db DynamoAPI, table string) *AccountStore {
	return &AccountStore{db: db, table: table}
}

// Get implements crossaccount.AccountStore.
func (s *AccountStore) Get(ctx context.Context, id string) (*crossaccount.Account, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"AccountId": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, crossaccount.ErrRemote("get account").WithCause(err).WithResource("account", id)
	}
	if len(out.Item) == 0 {
		return nil, crossaccount.ErrNotFound("account", id)
	}
	var rec accountRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, crossaccount.ErrInternal("decode account").WithCause(err).WithResource("account", id)
	}
	account := rec.account()
	return &account, nil
}

// Put implements crossaccount.AccountStore. The stored timestamp is
// always the write time.
func (s *AccountStore) Put(ctx context.Context, a crossaccount.Account) error {
	item, err := attributevalue.MarshalMap(accountRecord{
		AccountID: a.ID,
		Email:     a.Email,
		Group:     a.Group,
		Status:    string(a.Status),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return crossaccount.ErrInternal("encode account").WithCause(err).WithResource("account", a.ID)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return crossaccount.ErrRemote("put account").WithCause(err).WithResource("account", a.ID)
	}
	return nil
}

// ListActiveByGroup implements crossaccount.AccountStore. Group match is
// exact: "*" selects only ungrouped accounts.
func (s *AccountStore) ListActiveByGroup(ctx context.Context, group string) ([]crossaccount.Account, error) {
	filter := expression.Name("Status").Equal(expression.Value(string(crossaccount.StatusActive))).
		And(expression.Name("AccountGroup").Equal(expression.Value(group)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, crossaccount.ErrInternal("build account filter").WithCause(err)
	}

	var accounts []crossaccount.Account
	err = scanAll(ctx, s.db, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, func(items []map[string]types.AttributeValue) error {
		var recs []accountRecord
		if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
			return crossaccount.ErrInternal("decode accounts").WithCause(err)
		}
		for _, rec := range recs {
			accounts = append(accounts, rec.account())
		}
		return nil
	})
	if err != nil {
		var xerr *crossaccount.Error
		if errors.As(err, &xerr) {
			return nil, err
		}
		return nil, crossaccount.ErrRemote("scan accounts").WithCause(err)
	}
	return accounts, nil
}
