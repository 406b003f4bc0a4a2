package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "RUN#"
	skMeta   = "META"
	skVideo  = "VIDEO#"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoRunStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoRunStore implements RunStore on DynamoDB.
type DynamoRunStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ RunStore = (*DynamoRunStore)(nil)

// NewDynamoRunStore creates a DynamoRunStore for the given table.
func NewDynamoRunStore(client DynamoAPI, tableName string) *DynamoRunStore {
	return &DynamoRunStore{client: client, tableName: tableName, now: time.Now}
}

func runPK(runID string) string {
	return pkPrefix + runID
}

func (s *DynamoRunStore) keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// putItem marshals data and writes it with PK, SK and the TTL attribute.
func (s *DynamoRunStore) putItem(ctx context.Context, pk, sk string, data any) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RunTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoRunStore) PutRun(ctx context.Context, run *Run) error {
	if run.StartedAt == 0 {
		run.StartedAt = s.now().Unix()
	}
	if err := s.putItem(ctx, runPK(run.ID), skMeta, run); err != nil {
		return fmt.Errorf("put run %s: %w", run.ID, err)
	}
	zerolog.Ctx(ctx).Debug().Str("runId", run.ID).Str("status", run.Status).Msg("Run persisted to DynamoDB")
	return nil
}

func (s *DynamoRunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       s.keyOf(runPK(runID), skMeta),
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var run Run
	if err := attributevalue.UnmarshalMap(result.Item, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	run.ID = runID
	return &run, nil
}

func (s *DynamoRunStore) PutVideo(ctx context.Context, runID string, rec *VideoRecord) error {
	if err := s.putItem(ctx, runPK(runID), skVideo+rec.Video, rec); err != nil {
		return fmt.Errorf("put video %s/%s: %w", runID, rec.Video, err)
	}
	return nil
}

func (s *DynamoRunStore) ListVideos(ctx context.Context, runID string) ([]VideoRecord, error) {
	pk := runPK(runID)
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skVideo},
		},
	}

	var out []VideoRecord
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skVideo, err)
		}
		for _, item := range result.Items {
			var rec VideoRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal video record: %w", err)
			}
			if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				rec.Video = strings.TrimPrefix(sk.Value, skVideo)
			}
			out = append(out, rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}
