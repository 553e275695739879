// Package identitydao persists the link between an ERP user and an external
// identity provider account.
package identitydao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

// PK is the DynamoDB partition key: the ERP user id.
type PK string

func (pk PK) String() string {
	return string(pk)
}

// ID identifies a linked identity in format {userID}:{provider}.
type ID string

// NewID constructs an ID from user and provider.
func NewID(userID, provider string) ID {
	return ID(fmt.Sprintf("%s:%s", userID, provider))
}

// ParseID parses an ID into its user and provider components.
func ParseID(id ID) (userID, provider string, err error) {
	parts := strings.SplitN(string(id), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid identity ID format: %s, expected {userID}:{provider}", id)
	}
	return parts[0], parts[1], nil
}

func (id ID) String() string {
	return string(id)
}

// TableName derives the linked-identity table name from the environment.
func TableName(env string) string {
	return fmt.Sprintf("sso-gateway-%s-identities", env)
}

// Record represents one linked external identity.
type Record struct {
	PK       PK     `ddb:"hash" dynamodbav:"pk"`  // ERP user id
	SK       string `ddb:"range" dynamodbav:"sk"` // provider key (e.g. google-oauth2)
	Subject  string `dynamodbav:"subject,omitempty"` // IdP subject claim
	Email    string `dynamodbav:"email,omitempty"`
	Name     string `dynamodbav:"name,omitempty"`
	LinkedAt int64  `dynamodbav:"linked_at,omitempty"`
	UpdatedAt int64 `dynamodbav:"updated_at,omitempty"`
}

// GetID returns the identity ID in format {userID}:{provider}.
func (r *Record) GetID() ID {
	return NewID(r.PK.String(), r.SK)
}

// LinkInput contains the fields needed to record a linked identity.
type LinkInput struct {
	UserID   string
	Provider string
	Subject  string
	Email    string
	Name     string
}

// DAO provides data access operations for linked identities.
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

// Link records (or refreshes) a linked identity. Re-linking the same provider
// overwrites the prior subject, preserving the original LinkedAt.
func (d *DAO) Link(ctx context.Context, input LinkInput) (Record, error) {
	if input.UserID == "" || input.Provider == "" {
		return Record{}, fmt.Errorf("user id and provider are required")
	}

	now := time.Now().Unix()
	linkedAt := now
	if existing, err := d.Find(ctx, input.UserID, input.Provider); err == nil && existing.LinkedAt > 0 {
		linkedAt = existing.LinkedAt
	}

	record := Record{
		PK:        PK(input.UserID),
		SK:        input.Provider,
		Subject:   input.Subject,
		Email:     input.Email,
		Name:      input.Name,
		LinkedAt:  linkedAt,
		UpdatedAt: now,
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to link identity: %w", err)
	}

	return record, nil
}

// Find retrieves a linked identity by user and provider.
func (d *DAO) Find(ctx context.Context, userID, provider string) (Record, error) {
	var record Record

	err := d.table.Get(userID).
		Range(provider).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("linked identity not found: %s", NewID(userID, provider))
		}
		return Record{}, fmt.Errorf("failed to find linked identity: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("linked identity not found: %s", NewID(userID, provider))
	}

	return record, nil
}

// ListByUser returns all identities linked to the given user.
func (d *DAO) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", userID).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked identities: %w", err)
	}

	return records, nil
}

// Unlink removes a linked identity. Unlinking an identity that does not
// exist is not an error.
func (d *DAO) Unlink(ctx context.Context, userID, provider string) error {
	if err := d.table.Delete(PK(userID)).Range(provider).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to unlink identity: %w", err)
	}
	return nil
}
