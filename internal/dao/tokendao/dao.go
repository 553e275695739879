// Package tokendao persists OAuth access tokens obtained by the middleware on
// behalf of ERP users. Tokens are keyed by user and by a provider-scope key
// such as "google:drive.file", so one user may hold several tokens for the
// same provider with different scopes.
package tokendao

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

// Key is the provider-scope sort key, e.g. "google:drive.file".
type Key string

// NewKey constructs a Key from provider and the short scope suffix.
func NewKey(provider, scope string) Key {
	return Key(fmt.Sprintf("%s:%s", provider, scope))
}

// Matches reports whether the key belongs to the given provider and ends with
// the given scope suffix. Either argument may be empty to match anything.
func (k Key) Matches(provider, scopeSuffix string) bool {
	parts := strings.SplitN(string(k), ":", 2)
	if len(parts) != 2 {
		return false
	}
	if provider != "" && parts[0] != provider {
		return false
	}
	if scopeSuffix != "" && !strings.HasSuffix(parts[1], scopeSuffix) {
		return false
	}
	return true
}

// Split breaks the key into its provider and scope components.
func (k Key) Split() (provider, scope string) {
	parts := strings.SplitN(string(k), ":", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (k Key) String() string {
	return string(k)
}

// TableName derives the token table name from the environment.
func TableName(env string) string {
	return fmt.Sprintf("sso-gateway-%s-tokens", env)
}

// Record is one stored OAuth token.
type Record struct {
	PK           PK     `ddb:"hash" dynamodbav:"pk"`  // ERP user id
	SK           Key    `ddb:"range" dynamodbav:"sk"` // provider-scope key
	AccessToken  string `dynamodbav:"access_token,omitempty"`
	RefreshToken string `dynamodbav:"refresh_token,omitempty"`
	TokenType    string `dynamodbav:"token_type,omitempty"`
	ValidUntil   int64  `dynamodbav:"valid_until,omitempty"`
	UpdatedAt    int64  `dynamodbav:"updated_at,omitempty"`
}

// Expired reports whether the access token is past its validity window.
func (r *Record) Expired(now time.Time) bool {
	return r.ValidUntil > 0 && r.ValidUntil < now.Unix()
}

// PutInput contains the fields needed to store a token.
type PutInput struct {
	UserID       string
	Provider     string
	Scope        string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ValidUntil   int64
}

// DAO provides data access operations for stored tokens.
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

// Put stores (or refreshes) a token.
func (d *DAO) Put(ctx context.Context, input PutInput) (Record, error) {
	if input.UserID == "" || input.Provider == "" || input.AccessToken == "" {
		return Record{}, fmt.Errorf("user id, provider, and access token are required")
	}

	record := Record{
		PK:           PK(input.UserID),
		SK:           NewKey(input.Provider, input.Scope),
		AccessToken:  input.AccessToken,
		RefreshToken: input.RefreshToken,
		TokenType:    input.TokenType,
		ValidUntil:   input.ValidUntil,
		UpdatedAt:    time.Now().Unix(),
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to store token: %w", err)
	}

	return record, nil
}

// ListByUser returns every stored token for the given user.
func (d *DAO) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", userID).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}

	return records, nil
}

// FindMatching returns the user's tokens whose key matches the given provider
// and scope suffix. Filtering happens client-side: the match is a substring
// predicate over the sort key, which DynamoDB key conditions cannot express.
func (d *DAO) FindMatching(ctx context.Context, userID, provider, scopeSuffix string) ([]Record, error) {
	records, err := d.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched := records[:0]
	for _, r := range records {
		if r.SK.Matches(provider, scopeSuffix) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// Delete removes a stored token.
func (d *DAO) Delete(ctx context.Context, userID string, key Key) error {
	if err := d.table.Delete(PK(userID)).Range(key).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
