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

// bindingRecord is the DynamoDB shape of a role-to-account binding.
type bindingRecord struct {
	Role      string `dynamodbav:"Role"`
	AccountID string `dynamodbav:"AccountId"`
	Status    string `dynamodbav:"Status"`
	Timestamp int64  `dynamodbav:"Timestamp"`
}

func (r bindingRecord) binding() crossaccount.Binding {
	return crossaccount.Binding{
		Role:      r.Role,
		AccountID: r.AccountID,
		Status:    crossaccount.Status(r.Status),
		UpdatedAt: time.UnixMilli(r.Timestamp),
	}
}

// BindingStore implements crossaccount.BindingStore on a DynamoDB table
// keyed by role name and account id.
type BindingStore struct {
	db    DynamoAPI
	table string
}

// NewBindingStore creates a store backed by the named table.
func NewBindingStore(db DynamoAPI, table string) *BindingStore {
	return &BindingStore{db: db, table: table}
}

// Put implements crossaccount.BindingStore.
func (s *BindingStore) Put(ctx context.Context, b crossaccount.Binding) error {
	item, err := attributevalue.MarshalMap(bindingRecord{
		Role:      b.Role,
		AccountID: b.AccountID,
		Status:    string(b.Status),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return crossaccount.ErrInternal("encode binding").WithCause(err).WithResource("binding", b.Role)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return crossaccount.ErrRemote("put binding").WithCause(err).WithResource("binding", b.Role)
	}
	return nil
}

// ListActive implements crossaccount.BindingStore.
func (s *BindingStore) ListActive(ctx context.Context) ([]crossaccount.Binding, error) {
	filter := expression.Name("Status").Equal(expression.Value(string(crossaccount.StatusActive)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, crossaccount.ErrInternal("build binding filter").WithCause(err)
	}

	var bindings []crossaccount.Binding
	err = scanAll(ctx, s.db, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, func(items []map[string]types.AttributeValue) error {
		var recs []bindingRecord
		if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
			return crossaccount.ErrInternal("decode bindings").WithCause(err)
		}
		for _, rec := range recs {
			bindings = append(bindings, rec.binding())
		}
		return nil
	})
	if err != nil {
		var xerr *crossaccount.Error
		if errors.As(err, &xerr) {
			return nil, err
		}
		return nil, crossaccount.ErrRemote("scan bindings").WithCause(err)
	}
	return bindings, nil
}
