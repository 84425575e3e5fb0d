package registry

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

// fakeDynamo serves canned scan pages and records inputs.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue

	pages     [][]map[string]types.AttributeValue
	scanCalls []*dynamodb.ScanInput
	putCalls  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	var key string
	for _, v := range in.Key {
		key = v.(*types.AttributeValueMemberS).Value
	}
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putCalls = append(f.putCalls, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanCalls = append(f.scanCalls, in)
	page := 0
	if in.ExclusiveStartKey != nil {
		page = int(in.ExclusiveStartKey["page"].(*types.AttributeValueMemberN).Value[0] - '0')
	}
	out := &dynamodb.ScanOutput{Items: f.pages[page]}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"page": &types.AttributeValueMemberN{Value: string(rune('0' + page + 1))},
		}
	}
	return out, nil
}

func accountItem(id, group, status string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"AccountId":    &types.AttributeValueMemberS{Value: id},
		"Email":        &types.AttributeValueMemberS{Value: id + "@example.com"},
		"AccountGroup": &types.AttributeValueMemberS{Value: group},
		"Status":       &types.AttributeValueMemberS{Value: status},
		"Timestamp":    &types.AttributeValueMemberN{Value: "1700000000000"},
	}
}

func TestAccountStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get_decodes_row", func(t *testing.T) {
		db := newFakeDynamo()
		db.items["222222222222"] = accountItem("222222222222", "finance", "active")
		store := NewAccountStore(db, "CrossAccountManager-Accounts")

		a, err := store.Get(ctx, "222222222222")
		require.NoError(t, err)
		assert.Equal(t, "finance", a.Group)
		assert.Equal(t, crossaccount.StatusActive, a.Status)
		assert.Equal(t, int64(1700000000000), a.UpdatedAt.UnixMilli())
	})

	t.Run("get_missing_is_not_found", func(t *testing.T) {
		store := NewAccountStore(newFakeDynamo(), "CrossAccountManager-Accounts")
		_, err := store.Get(ctx, "404404404404")
		assert.True(t, crossaccount.IsNotFound(err))
	})

	t.Run("put_writes_wire_attributes", func(t *testing.T) {
		db := newFakeDynamo()
		store := NewAccountStore(db, "CrossAccountManager-Accounts")

		require.NoError(t, store.Put(ctx, crossaccount.Account{
			ID: "222222222222", Email: "finance@example.com", Group: "finance",
			Status: crossaccount.StatusPending,
		}))

		require.Len(t, db.putCalls, 1)
		item := db.putCalls[0].Item
		assert.Equal(t, "CrossAccountManager-Accounts", aws.ToString(db.putCalls[0].TableName))
		assert.Equal(t, "222222222222", item["AccountId"].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "pending", item["Status"].(*types.AttributeValueMemberS).Value)
		assert.NotEmpty(t, item["Timestamp"].(*types.AttributeValueMemberN).Value)
	})

	t.Run("list_drains_pagination", func(t *testing.T) {
		db := newFakeDynamo()
		db.pages = [][]map[string]types.AttributeValue{
			{accountItem("111111111111", "finance", "active")},
			{accountItem("222222222222", "finance", "active")},
			{accountItem("333333333333", "finance", "active")},
		}
		store := NewAccountStore(db, "CrossAccountManager-Accounts")

		accounts, err := store.ListActiveByGroup(ctx, "finance")
		require.NoError(t, err)
		assert.Len(t, accounts, 3)
		assert.Len(t, db.scanCalls, 3)
	})

	t.Run("list_filters_status_and_exact_group", func(t *testing.T) {
		db := newFakeDynamo()
		db.pages = [][]map[string]types.AttributeValue{nil}
		store := NewAccountStore(db, "CrossAccountManager-Accounts")

		_, err := store.ListActiveByGroup(ctx, "*")
		require.NoError(t, err)

		require.Len(t, db.scanCalls, 1)
		in := db.scanCalls[0]
		require.NotNil(t, in.FilterExpression)
		values := make([]string, 0, len(in.ExpressionAttributeValues))
		for _, v := range in.ExpressionAttributeValues {
			values = append(values, v.(*types.AttributeValueMemberS).Value)
		}
		assert.ElementsMatch(t, []string{"active", "*"}, values)
	})
}

func roleItem(name, policy, group, status string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Role":         &types.AttributeValueMemberS{Value: name},
		"Policy":       &types.AttributeValueMemberS{Value: policy},
		"AccountGroup": &types.AttributeValueMemberS{Value: group},
		"Status":       &types.AttributeValueMemberS{Value: status},
		"Timestamp":    &types.AttributeValueMemberN{Value: "1700000000000"},
	}
}

func TestRoleStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get_parses_policy_locator", func(t *testing.T) {
		db := newFakeDynamo()
		db.items["CrossAccountManager-finance"] = roleItem(
			"CrossAccountManager-finance", "cam-config:finance.json", "finance", "active")
		store := NewRoleStore(db, "CrossAccountManager-Roles")

		r, err := store.Get(ctx, "CrossAccountManager-finance")
		require.NoError(t, err)
		assert.Equal(t, crossaccount.PolicyRef{Bucket: "cam-config", Key: "finance.json"}, r.PolicyRef)
	})

	t.Run("get_rejects_malformed_locator", func(t *testing.T) {
		db := newFakeDynamo()
		db.items["CrossAccountManager-finance"] = roleItem(
			"CrossAccountManager-finance", "no-separator", "finance", "active")
		store := NewRoleStore(db, "CrossAccountManager-Roles")

		_, err := store.Get(ctx, "CrossAccountManager-finance")
		require.Error(t, err)
	})

	t.Run("put_round_trips_locator", func(t *testing.T) {
		db := newFakeDynamo()
		store := NewRoleStore(db, "CrossAccountManager-Roles")

		require.NoError(t, store.Put(ctx, crossaccount.Role{
			Name:      "CrossAccountManager-finance",
			PolicyRef: crossaccount.PolicyRef{Bucket: "cam-config", Key: "finance.json"},
			Group:     "finance",
			Status:    crossaccount.StatusActive,
		}))

		require.Len(t, db.putCalls, 1)
		item := db.putCalls[0].Item
		assert.Equal(t, "cam-config:finance.json", item["Policy"].(*types.AttributeValueMemberS).Value)
	})

	t.Run("list_matches_group_or_wildcard", func(t *testing.T) {
		db := newFakeDynamo()
		db.pages = [][]map[string]types.AttributeValue{nil}
		store := NewRoleStore(db, "CrossAccountManager-Roles")

		_, err := store.ListActiveForGroup(ctx, "finance")
		require.NoError(t, err)

		require.Len(t, db.scanCalls, 1)
		values := make([]string, 0)
		for _, v := range db.scanCalls[0].ExpressionAttributeValues {
			values = append(values, v.(*types.AttributeValueMemberS).Value)
		}
		assert.ElementsMatch(t, []string{"active", "finance", "*"}, values)
	})
}

func bindingItem(role, account, status string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Role":      &types.AttributeValueMemberS{Value: role},
		"AccountId": &types.AttributeValueMemberS{Value: account},
		"Status":    &types.AttributeValueMemberS{Value: status},
		"Timestamp": &types.AttributeValueMemberN{Value: "1700000000000"},
	}
}

func TestBindingStore(t *testing.T) {
	ctx := context.Background()

	t.Run("list_active", func(t *testing.T) {
		db := newFakeDynamo()
		db.pages = [][]map[string]types.AttributeValue{
			{bindingItem("CrossAccountManager-finance", "222222222222", "active")},
		}
		store := NewBindingStore(db, "CrossAccountManager-Account-Roles")

		bindings, err := store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, bindings, 1)
		assert.Equal(t, "222222222222", bindings[0].AccountID)
		assert.Equal(t, crossaccount.StatusActive, bindings[0].Status)
	})

	t.Run("put_writes_composite_key", func(t *testing.T) {
		db := newFakeDynamo()
		store := NewBindingStore(db, "CrossAccountManager-Account-Roles")

		require.NoError(t, store.Put(ctx, crossaccount.Binding{
			Role: "CrossAccountManager-finance", AccountID: "222222222222",
			Status: crossaccount.StatusPending,
		}))

		require.Len(t, db.putCalls, 1)
		item := db.putCalls[0].Item
		assert.Equal(t, "CrossAccountManager-finance", item["Role"].(*types.AttributeValueMemberS).Value)
		assert.Equal(t, "222222222222", item["AccountId"].(*types.AttributeValueMemberS).Value)
	})
}
