package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"coin-chat/internal/domain"
	"coin-chat/internal/ratelimit"
)

const (
	pkPrefixRate = "RATE#"
	skWindow     = "WINDOW#"
	ttlGrace     = 24 * time.Hour // TTL margin past the window end
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ ratelimit.Store = (*DynamoStore)(nil)

// DynamoStore keeps fixed-window counters in a DynamoDB table so every relay
// instance shares the same per-source budget.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoStore creates a store backed by tableName.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

// ratePK returns the partition key for a source key.
func ratePK(sourceKey string) string {
	return pkPrefixRate + sourceKey
}

func itemKey(sourceKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ratePK(sourceKey)},
		"SK": &types.AttributeValueMemberS{Value: skWindow},
	}
}

// Increment bumps the active window for key, or opens a new one. When two
// instances race to open a window the loser increments the winner's.
func (c *DynamoStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateLimitEntry, error) {
	entry, err := c.incrementActive(ctx, key, now)
	if err == nil {
		return entry, nil
	}
	if !isConditionFailed(err) {
		return domain.RateLimitEntry{}, fmt.Errorf("repository: Increment update: %w", err)
	}

	entry, err = c.openWindow(ctx, key, now, window)
	if err == nil {
		return entry, nil
	}
	if !isConditionFailed(err) {
		return domain.RateLimitEntry{}, fmt.Errorf("repository: Increment open window: %w", err)
	}

	entry, err = c.incrementActive(ctx, key, now)
	if err != nil {
		return domain.RateLimitEntry{}, fmt.Errorf("repository: Increment retry: %w", err)
	}
	return entry, nil
}

// incrementActive adds one to the counter if its window has not expired.
func (c *DynamoStore) incrementActive(ctx context.Context, key string, now time.Time) (domain.RateLimitEntry, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 itemKey(key),
		UpdateExpression:    aws.String("SET #count = #count + :one"),
		ConditionExpression: aws.String("attribute_exists(PK) AND #resetAt >= :now"),
		ExpressionAttributeNames: map[string]string{
			"#count":   "count",
			"#resetAt": "resetAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberN{Value: millis(now)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return domain.RateLimitEntry{}, err
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.RateLimitEntry{}, errors.New("repository: update returned no attributes")
	}
	return itemToEntry(key, out.Attributes)
}

// openWindow starts a new window with count 1 unless another writer already
// holds an active one.
func (c *DynamoStore) openWindow(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateLimitEntry, error) {
	entry := domain.RateLimitEntry{
		SourceKey:     key,
		Count:         1,
		WindowResetAt: now.Add(window),
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                entryItem(entry),
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #resetAt < :now"),
		ExpressionAttributeNames: map[string]string{
			"#resetAt": "resetAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: millis(now)},
		},
	})
	if err != nil {
		return domain.RateLimitEntry{}, err
	}
	return entry, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func entryItem(e domain.RateLimitEntry) map[string]types.AttributeValue {
	item := itemKey(e.SourceKey)
	item["sourceKey"] = &types.AttributeValueMemberS{Value: e.SourceKey}
	item["count"] = &types.AttributeValueMemberN{Value: strconv.Itoa(e.Count)}
	item["resetAt"] = &types.AttributeValueMemberN{Value: millis(e.WindowResetAt)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(e.WindowResetAt.Add(ttlGrace).Unix(), 10)}
	return item
}

// itemToEntry converts a DynamoDB attribute map to a RateLimitEntry.
func itemToEntry(key string, item map[string]types.AttributeValue) (domain.RateLimitEntry, error) {
	count, err := intAttr(item, "count")
	if err != nil {
		return domain.RateLimitEntry{}, err
	}
	resetAt, err := intAttr(item, "resetAt")
	if err != nil {
		return domain.RateLimitEntry{}, err
	}
	return domain.RateLimitEntry{
		SourceKey:     key,
		Count:         int(count),
		WindowResetAt: time.UnixMilli(resetAt).UTC(),
	}, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
