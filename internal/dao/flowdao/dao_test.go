package flowdao

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

func TestTableName(t *testing.T) {
	assert.Equal(t, "sso-gateway-dev-flows", TableName("dev"))
	assert.Equal(t, "sso-gateway-prod-flows", TableName("prod"))
}

func TestCreateValidation(t *testing.T) {
	dao := &DAO{}

	_, err := dao.Create(context.Background(), CreateInput{UserID: "100"})
	assert.Error(t, err)

	_, err = dao.Create(context.Background(), CreateInput{Nonce: "abc"})
	assert.Error(t, err)
}

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("flows-test-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = New(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Create_And_Find", func(t *testing.T) {
			nonce := ksuid.New().String()

			created, err := dao.Create(ctx, CreateInput{
				Nonce:       nonce,
				UserID:      "100",
				Provider:    "google",
				Scope:       "https://www.googleapis.com/auth/drive.file",
				RedirectURI: "https://erp.example.com/web/LinkAccount.html",
			})
			assert.NoError(t, err)
			assert.Equal(t, PK(nonce), created.PK)
			assert.NotZero(t, created.CreatedAt)
			assert.Greater(t, created.TTL, created.CreatedAt)

			found, err := dao.Find(ctx, nonce)
			assert.NoError(t, err)
			assert.Equal(t, "100", found.UserID)
			assert.Equal(t, "google", found.Provider)
			assert.Equal(t, "https://www.googleapis.com/auth/drive.file", found.Scope)
		})

		t.Run("Find_NotFound", func(t *testing.T) {
			_, err := dao.Find(ctx, ksuid.New().String())
			assert.ErrorIs(t, err, apperrors.ErrFlowNotFound)
		})

		t.Run("Consume_Is_SingleUse", func(t *testing.T) {
			nonce := ksuid.New().String()

			_, err := dao.Create(ctx, CreateInput{
				Nonce:    nonce,
				UserID:   "100",
				Provider: "google",
			})
			assert.NoError(t, err)

			record, err := dao.Consume(ctx, nonce)
			assert.NoError(t, err)
			assert.Equal(t, "100", record.UserID)

			// A replayed callback must not find the flow again.
			_, err = dao.Consume(ctx, nonce)
			assert.ErrorIs(t, err, apperrors.ErrFlowNotFound)

			_, err = dao.Find(ctx, nonce)
			assert.ErrorIs(t, err, apperrors.ErrFlowNotFound)
		})

		t.Run("Delete_Abandoned_Flow", func(t *testing.T) {
			nonce := ksuid.New().String()

			_, err := dao.Create(ctx, CreateInput{
				Nonce:  nonce,
				UserID: "100",
			})
			assert.NoError(t, err)

			err = dao.Delete(ctx, nonce)
			assert.NoError(t, err)

			_, err = dao.Find(ctx, nonce)
			assert.ErrorIs(t, err, apperrors.ErrFlowNotFound)

			// Deleting an already-deleted flow is not an error.
			err = dao.Delete(ctx, nonce)
			assert.NoError(t, err)
		})
	})
}
