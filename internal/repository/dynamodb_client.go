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

	"portfolio-functions/internal/domain"
	"portfolio-functions/internal/quota"
)

const (
	skQuota      = "QUOTA#"
	ttlGrace     = 24 * time.Hour
	maxAttempts  = 3
	attrCount    = "messageCount"
	attrStart    = "windowStart"
	attrSession  = "sessionId"
	attrTTL      = "ttl"
	returnAllNew = types.ReturnValueAllNew
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Client stores session quota records in a DynamoDB table so the quota holds
// across concurrent function instances.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func (c *Client) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skQuota},
	}
}

// ttlValue returns the Unix time after which DynamoDB may expire the record.
func ttlValue(start time.Time, window time.Duration) int64 {
	return start.Add(window).Add(ttlGrace).Unix()
}

// Admit applies the fixed-window quota with conditional writes. The common
// path is a single conditional increment; a failed condition means the record
// is missing, expired or exhausted, which a consistent read disambiguates.
func (c *Client) Admit(ctx context.Context, sessionID string, now time.Time, policy quota.Policy) (quota.Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return quota.Decision{}, errors.New("repository: Admit: policy limit and window must be positive")
	}
	windowStart := now.Add(-policy.Window)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := c.increment(ctx, sessionID, windowStart, policy.Limit)
		if err == nil {
			return allowed(rec, policy), nil
		}
		if !isConditionFailed(err) {
			return quota.Decision{}, fmt.Errorf("repository: Admit increment: %w", err)
		}

		rec, found, err := c.GetSessionQuota(ctx, sessionID)
		if err != nil {
			return quota.Decision{}, fmt.Errorf("repository: Admit: %w", err)
		}
		if found && !rec.Expired(now, policy.Window) {
			if rec.Count >= policy.Limit {
				return quota.Decision{Allowed: false, Count: rec.Count, WindowStart: rec.StartTime}, nil
			}
			// Another instance reset the window between our two calls.
			continue
		}

		rec = domain.SessionQuota{SessionID: sessionID, Count: 1, StartTime: now}
		err = c.resetWindow(ctx, rec, windowStart, policy.Window)
		if err == nil {
			return allowed(rec, policy), nil
		}
		if !isConditionFailed(err) {
			return quota.Decision{}, fmt.Errorf("repository: Admit reset: %w", err)
		}
	}
	return quota.Decision{}, fmt.Errorf("repository: Admit: contention on session %q", sessionID)
}

// GetSessionQuota reads the current record with a consistent read.
func (c *Client) GetSessionQuota(ctx context.Context, sessionID string) (domain.SessionQuota, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.SessionQuota{}, false, fmt.Errorf("repository: GetSessionQuota get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.SessionQuota{}, false, nil
	}
	rec, err := itemToQuota(out.Item)
	if err != nil {
		return domain.SessionQuota{}, false, fmt.Errorf("repository: GetSessionQuota decode: %w", err)
	}
	return rec, true, nil
}

func (c *Client) increment(ctx context.Context, sessionID string, windowStart time.Time, limit int) (domain.SessionQuota, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.key(sessionID),
		UpdateExpression:    aws.String("SET #count = #count + :one"),
		ConditionExpression: aws.String("attribute_exists(PK) AND #start >= :windowStart AND #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": attrCount,
			"#start": attrStart,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":         &types.AttributeValueMemberN{Value: "1"},
			":windowStart": millisAttr(windowStart),
			":limit":       &types.AttributeValueMemberN{Value: strconv.Itoa(limit)},
		},
		ReturnValues: returnAllNew,
	})
	if err != nil {
		return domain.SessionQuota{}, err
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.SessionQuota{}, errors.New("update returned no attributes")
	}
	return itemToQuota(out.Attributes)
}

func (c *Client) resetWindow(ctx context.Context, rec domain.SessionQuota, windowStart time.Time, window time.Duration) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                quotaItem(rec, window),
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #start < :windowStart"),
		ExpressionAttributeNames: map[string]string{
			"#start": attrStart,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":windowStart": millisAttr(windowStart),
		},
	})
	return err
}

func allowed(rec domain.SessionQuota, policy quota.Policy) quota.Decision {
	return quota.Decision{
		Allowed:     true,
		Count:       rec.Count,
		Remaining:   policy.Limit - rec.Count,
		WindowStart: rec.StartTime,
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func quotaItem(rec domain.SessionQuota, window time.Duration) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(rec.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: skQuota},
		attrSession: &types.AttributeValueMemberS{Value: rec.SessionID},
		attrCount:   &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Count)},
		attrStart:   millisAttr(rec.StartTime),
		attrTTL:     &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(rec.StartTime, window), 10)},
	}
}

// itemToQuota converts a DynamoDB attribute map to a SessionQuota.
func itemToQuota(item map[string]types.AttributeValue) (domain.SessionQuota, error) {
	sessionID, err := strAttr(item, attrSession)
	if err != nil {
		return domain.SessionQuota{}, err
	}
	count, err := intAttr(item, attrCount)
	if err != nil {
		return domain.SessionQuota{}, err
	}
	startMillis, err := intAttr(item, attrStart)
	if err != nil {
		return domain.SessionQuota{}, err
	}
	return domain.SessionQuota{
		SessionID: sessionID,
		Count:     count,
		StartTime: time.UnixMilli(int64(startMillis)).UTC(),
	}, nil
}

func millisAttr(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

var _ quota.Store = (*Client)(nil)
