// Package flowdao persists pending OAuth link flows. The state token carried
// through the provider redirect is treated as a lookup key into this table
// rather than a self-describing credential: the callback is only honored when
// a matching pending record exists, and consuming a record is single-use.
package flowdao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

const (
	flowSK = "FLOW"

	// Pending flows auto-expire; a callback arriving later than this is
	// indistinguishable from a forged one.
	flowTTL = 15 * time.Minute
)

// PK is the DynamoDB partition key: the flow nonce. Nonces are unguessable
// and unique per flow, so they partition naturally.
type PK string

func (pk PK) String() string {
	return string(pk)
}

// TableName derives the pending-flow table name from the environment.
func TableName(env string) string {
	return fmt.Sprintf("sso-gateway-%s-flows", env)
}

// Record is a pending link flow awaiting its callback.
type Record struct {
	PK              PK     `ddb:"hash" dynamodbav:"pk"`  // flow nonce
	SK              string `ddb:"range" dynamodbav:"sk"` // always "FLOW"
	UserID          string `dynamodbav:"user_id,omitempty"`
	Provider        string `dynamodbav:"provider,omitempty"`
	Scope           string `dynamodbav:"scope,omitempty"`
	RedirectURI     string `dynamodbav:"redirect_uri,omitempty"`
	ProcessEndpoint string `dynamodbav:"process_endpoint,omitempty"`
	CreatedAt       int64  `dynamodbav:"created_at,omitempty"`
	TTL             int64  `dynamodbav:"ttl,omitempty"` // DynamoDB TTL expiry
}

// CreateInput contains the fields needed to register a pending flow.
type CreateInput struct {
	Nonce           string
	UserID          string
	Provider        string
	Scope           string
	RedirectURI     string
	ProcessEndpoint string
}

// DAO provides data access operations for pending flow records.
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance.
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create registers a pending flow keyed by its nonce.
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	if input.Nonce == "" || input.UserID == "" {
		return Record{}, fmt.Errorf("nonce and user id are required")
	}

	now := time.Now()
	record := Record{
		PK:              PK(input.Nonce),
		SK:              flowSK,
		UserID:          input.UserID,
		Provider:        input.Provider,
		Scope:           input.Scope,
		RedirectURI:     input.RedirectURI,
		ProcessEndpoint: input.ProcessEndpoint,
		CreatedAt:       now.Unix(),
		TTL:             now.Add(flowTTL).Unix(),
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to create pending flow: %w", err)
	}

	return record, nil
}

// Find retrieves a pending flow by nonce without consuming it.
func (d *DAO) Find(ctx context.Context, nonce string) (Record, error) {
	var record Record

	err := d.table.Get(nonce).
		Range(flowSK).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, apperrors.ErrFlowNotFound
		}
		return Record{}, fmt.Errorf("failed to find pending flow: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, apperrors.ErrFlowNotFound
	}

	if record.TTL > 0 && record.TTL < time.Now().Unix() {
		// DynamoDB TTL deletion is lazy; treat expired records as gone.
		return Record{}, apperrors.ErrFlowNotFound
	}

	return record, nil
}

// Consume retrieves and deletes a pending flow in one step. A second consume
// of the same nonce fails with ErrFlowNotFound, which gives callbacks their
// single-use property.
func (d *DAO) Consume(ctx context.Context, nonce string) (Record, error) {
	record, err := d.Find(ctx, nonce)
	if err != nil {
		return Record{}, err
	}

	if err := d.table.Delete(record.PK).Range(flowSK).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to consume pending flow: %w", err)
	}

	return record, nil
}

// Delete removes a pending flow without returning it (flow abandoned).
func (d *DAO) Delete(ctx context.Context, nonce string) error {
	if err := d.table.Delete(PK(nonce)).Range(flowSK).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete pending flow: %w", err)
	}
	return nil
}
