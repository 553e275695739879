package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
	"github.com/etendosoftware/sso-gateway/internal/dao/tokendao"
)

// DynamoDBService bundles the gateway's DynamoDB-backed DAOs behind one
// construction point so callers share a single client.
type DynamoDBService struct {
	client     *dynamodb.Client
	Flows      *flowdao.DAO
	Identities *identitydao.DAO
	Tokens     *tokendao.DAO
}

func NewDynamoDBService(env string) (*DynamoDBService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg)
	return NewDynamoDBServiceWithClient(
		client,
		flowdao.TableName(env),
		identitydao.TableName(env),
		tokendao.TableName(env),
	), nil
}

// NewDynamoDBServiceWithClient creates a DynamoDBService with a custom client
// and table names. This is useful for testing with local DynamoDB.
func NewDynamoDBServiceWithClient(client *dynamodb.Client, flowTable, identityTable, tokenTable string) *DynamoDBService {
	return &DynamoDBService{
		client:     client,
		Flows:      flowdao.New(client, flowTable),
		Identities: identitydao.New(client, identityTable),
		Tokens:     tokendao.New(client, tokenTable),
	}
}

// GetClient returns the underlying DynamoDB client. This is useful for testing.
func (d *DynamoDBService) GetClient() *dynamodb.Client {
	return d.client
}
