package identitydao

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	id := NewID("100", "google-oauth2")
	assert.Equal(t, "100:google-oauth2", id.String())

	userID, provider, err := ParseID(id)
	assert.NoError(t, err)
	assert.Equal(t, "100", userID)
	assert.Equal(t, "google-oauth2", provider)

	_, _, err = ParseID("no-separator")
	assert.Error(t, err)

	_, _, err = ParseID(":google")
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "sso-gateway-dev-identities", TableName("dev"))
}

func TestLinkValidation(t *testing.T) {
	dao := &DAO{}

	_, err := dao.Link(context.Background(), LinkInput{Provider: "google"})
	assert.Error(t, err)

	_, err = dao.Link(context.Background(), LinkInput{UserID: "100"})
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
		tableName = fmt.Sprintf("identities-test-%v", ksuid.New().String())
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

		t.Run("Link_And_Find", func(t *testing.T) {
			record, err := dao.Link(ctx, LinkInput{
				UserID:   "100",
				Provider: "google-oauth2",
				Subject:  "google-oauth2|1234567890",
				Email:    "user@example.com",
				Name:     "Example User",
			})
			assert.NoError(t, err)
			assert.Equal(t, "100:google-oauth2", record.GetID().String())
			assert.NotZero(t, record.LinkedAt)

			found, err := dao.Find(ctx, "100", "google-oauth2")
			assert.NoError(t, err)
			assert.Equal(t, "google-oauth2|1234567890", found.Subject)
			assert.Equal(t, "user@example.com", found.Email)
		})

		t.Run("Relink_Preserves_LinkedAt", func(t *testing.T) {
			first, err := dao.Link(ctx, LinkInput{
				UserID:   "200",
				Provider: "google-oauth2",
				Subject:  "google-oauth2|old",
			})
			assert.NoError(t, err)

			time.Sleep(1100 * time.Millisecond)

			second, err := dao.Link(ctx, LinkInput{
				UserID:   "200",
				Provider: "google-oauth2",
				Subject:  "google-oauth2|new",
			})
			assert.NoError(t, err)
			assert.Equal(t, first.LinkedAt, second.LinkedAt)
			assert.Greater(t, second.UpdatedAt, second.LinkedAt)

			found, err := dao.Find(ctx, "200", "google-oauth2")
			assert.NoError(t, err)
			assert.Equal(t, "google-oauth2|new", found.Subject)
		})

		t.Run("ListByUser", func(t *testing.T) {
			for _, provider := range []string{"google-oauth2", "windowslive", "github"} {
				_, err := dao.Link(ctx, LinkInput{
					UserID:   "300",
					Provider: provider,
					Subject:  provider + "|sub",
				})
				assert.NoError(t, err)
			}

			records, err := dao.ListByUser(ctx, "300")
			assert.NoError(t, err)
			assert.Len(t, records, 3)

			records, err = dao.ListByUser(ctx, "nobody")
			assert.NoError(t, err)
			assert.Empty(t, records)
		})

		t.Run("Unlink", func(t *testing.T) {
			_, err := dao.Link(ctx, LinkInput{
				UserID:   "400",
				Provider: "google-oauth2",
				Subject:  "google-oauth2|sub",
			})
			assert.NoError(t, err)

			err = dao.Unlink(ctx, "400", "google-oauth2")
			assert.NoError(t, err)

			_, err = dao.Find(ctx, "400", "google-oauth2")
			assert.Error(t, err)

			// Unlinking twice is not an error.
			err = dao.Unlink(ctx, "400", "google-oauth2")
			assert.NoError(t, err)
		})
	})
}
