package client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// DynamoDBClient wraps the AWS DynamoDB client
type DynamoDBClient struct {
	client *dynamodb.Client
	log    *zap.Logger
}

// NewDynamoDBClient creates a new DynamoDB client
func NewDynamoDBClient(awsCfg aws.Config, log *zap.Logger) *DynamoDBClient {
	return &DynamoDBClient{
		client: dynamodb.NewFromConfig(awsCfg),
		log:    log,
	}
}

// GetItem implements the Client.GetItem method
func (c *DynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return c.client.GetItem(ctx, params, optFns...)
}

// PutItem implements the Client.PutItem method
func (c *DynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.log.Debug("PutItem called", zap.String("table", aws.ToString(params.TableName)))
	return c.client.PutItem(ctx, params, optFns...)
}

// UpdateItem implements the Client.UpdateItem method
func (c *DynamoDBClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.log.Debug("UpdateItem called", zap.String("table", aws.ToString(params.TableName)))
	return c.client.UpdateItem(ctx, params, optFns...)
}
