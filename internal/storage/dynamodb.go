package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// Attribute names of the DynamoDB table. The table is keyed by OriginTs (S).
const (
	dynamoOriginAttr = "OriginTs"
	dynamoMirrorAttr = "FairyTs"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBConnectionStore keeps connections in a DynamoDB table, which suits
// the serverless deployment where no local disk survives between invocations.
type DynamoDBConnectionStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDBConnectionStore creates a store for table. A nil client is
// replaced in Initialize by one built from the default AWS configuration.
func NewDynamoDBConnectionStore(client DynamoDBAPI, table string) *DynamoDBConnectionStore {
	return &DynamoDBConnectionStore{client: client, table: table}
}

func (s *DynamoDBConnectionStore) Initialize(ctx context.Context) error {
	if s.table == "" {
		return errors.New("dynamodb table name is required")
	}
	if s.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load AWS configuration")
	}
	s.client = dynamodb.NewFromConfig(cfg)
	return nil
}

func (s *DynamoDBConnectionStore) Close() error { return nil }

func (s *DynamoDBConnectionStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            originKey(originTS),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, errors.Wrap(err, "failed to lookup connection")
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}
	mirror, ok := out.Item[dynamoMirrorAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, errors.Errorf("connection for %s has no %s attribute", originTS, dynamoMirrorAttr)
	}
	return mirror.Value, true, nil
}

func (s *DynamoDBConnectionStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			dynamoOriginAttr: &types.AttributeValueMemberS{Value: originTS},
			dynamoMirrorAttr: &types.AttributeValueMemberS{Value: mirrorTS},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to store connection")
	}
	return nil
}

func (s *DynamoDBConnectionStore) DeleteConnection(ctx context.Context, originTS string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       originKey(originTS),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

func (s *DynamoDBConnectionStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return errors.Wrap(err, "dynamodb describe table failed")
	}
	return nil
}

func originKey(originTS string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoOriginAttr: &types.AttributeValueMemberS{Value: originTS},
	}
}
