// Package registry persists the account, role, and binding registries in
// DynamoDB, one table per registry. Records carry the wire attribute
// names consumed by the reporting tooling, so the tables remain readable
// outside this module.
package registry

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI abstracts the DynamoDB operations the stores consume.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// scanAll drains a filtered scan, following ExclusiveStartKey until the
// table is exhausted, and hands every page's items to collect.
func scanAll(ctx context.Context, db DynamoAPI, in *dynamodb.ScanInput, collect func([]map[string]types.AttributeValue) error) error {
	for {
		out, err := db.Scan(ctx, in)
		if err != nil {
			return err
		}
		if err := collect(out.Items); err != nil {
			return err
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
