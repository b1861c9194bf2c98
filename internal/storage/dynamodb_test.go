package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamoDB is an in-memory stand-in for a single DynamoDB table
type fakeDynamoDB struct {
	mu    sync.Mutex
	table string
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamoDB(table string) *fakeDynamoDB {
	return &fakeDynamoDB{table: table, items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamoDB) keyOf(key map[string]types.AttributeValue) string {
	return key[dynamoOriginAttr].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamoDB) checkTable(name *string) error {
	if f.err != nil {
		return f.err
	}
	if aws.ToString(name) != f.table {
		return errors.New("ResourceNotFoundException: table not found")
	}
	return nil
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[f.keyOf(in.Key)]}, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	f.items[f.keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	delete(f.items, f.keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamoDB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestDynamoDBConnectionStore(t *testing.T) {
	store := NewDynamoDBConnectionStore(newFakeDynamoDB("fairy"), "fairy")
	require.NoError(t, store.Initialize(context.Background()))

	runConnectionStoreContract(t, store)
}

func TestDynamoDBConnectionStore_ItemLayout(t *testing.T) {
	fake := newFakeDynamoDB("fairy")
	store := NewDynamoDBConnectionStore(fake, "fairy")
	ctx := context.Background()

	require.NoError(t, store.CreateConnection(ctx, "100.1", "100.2"))

	item := fake.items["100.1"]
	require.NotNil(t, item)
	assert.Equal(t, "100.1", item["OriginTs"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "100.2", item["FairyTs"].(*types.AttributeValueMemberS).Value)
}

func TestDynamoDBConnectionStore_Errors(t *testing.T) {
	fake := newFakeDynamoDB("fairy")
	fake.err = errors.New("ProvisionedThroughputExceededException")
	store := NewDynamoDBConnectionStore(fake, "fairy")
	ctx := context.Background()

	_, _, err := store.LookupMirror(ctx, "1")
	assert.Error(t, err)
	assert.Error(t, store.CreateConnection(ctx, "1", "2"))
	assert.Error(t, store.DeleteConnection(ctx, "1"))
	assert.Error(t, store.HealthCheck(ctx))
}

func TestDynamoDBConnectionStore_MissingMirrorAttribute(t *testing.T) {
	fake := newFakeDynamoDB("fairy")
	fake.items["1"] = map[string]types.AttributeValue{
		dynamoOriginAttr: &types.AttributeValueMemberS{Value: "1"},
	}
	store := NewDynamoDBConnectionStore(fake, "fairy")

	_, _, err := store.LookupMirror(context.Background(), "1")
	assert.Error(t, err)
}

func TestDynamoDBConnectionStore_RequiresTable(t *testing.T) {
	store := NewDynamoDBConnectionStore(newFakeDynamoDB(""), "")
	assert.Error(t, store.Initialize(context.Background()))
}
