package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
	"github.com/etendosoftware/sso-gateway/internal/dao/tokendao"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

func ProvideFlowDAO(env string, client *dynamodb.Client) *flowdao.DAO {
	return flowdao.New(client, flowdao.TableName(env))
}

func ProvideIdentityDAO(env string, client *dynamodb.Client) *identitydao.DAO {
	return identitydao.New(client, identitydao.TableName(env))
}

func ProvideTokenDAO(env string, client *dynamodb.Client) *tokendao.DAO {
	return tokendao.New(client, tokendao.TableName(env))
}

func ProvideDynamoDBService(env string, client *dynamodb.Client) *services.DynamoDBService {
	return services.NewDynamoDBServiceWithClient(client,
		flowdao.TableName(env),
		identitydao.TableName(env),
		tokendao.TableName(env),
	)
}
