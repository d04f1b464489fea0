package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type SharingStore struct {
	api        API
	table      string
	sharedWith string
	now        func() time.Time
}

func NewSharingStore(api API, table, sharedWithIndex string) *SharingStore {
	return &SharingStore{api: api, table: table, sharedWith: sharedWithIndex, now: time.Now}
}

// AddRelationship writes the edge unless it already exists, so repeated adds
// leave the original createdAt in place.
func (s *SharingStore) AddRelationship(ctx context.Context, timerID, sharedWith string) error {
	item, err := attributevalue.MarshalMap(types.SharingRelationship{
		TimerID:    timerID,
		SharedWith: sharedWith,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode relationship: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(timerId) AND attribute_not_exists(sharedWith)"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("add relationship %s->%s: %w", timerID, sharedWith, err)
	}
	return nil
}

func (s *SharingStore) RemoveRelationship(ctx context.Context, timerID, sharedWith string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"timerId":    str(timerID),
			"sharedWith": str(sharedWith),
		},
	}); err != nil {
		return fmt.Errorf("remove relationship %s->%s: %w", timerID, sharedWith, err)
	}
	return nil
}

func (s *SharingStore) ListSharedUsers(ctx context.Context, timerID string) ([]string, error) {
	return queryStrings(ctx, s.api, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("timerId = :timerId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":timerId": str(timerID)},
		ProjectionExpression:      aws.String("sharedWith"),
	}, "sharedWith")
}

func (s *SharingStore) ListSharedTimerIDs(ctx context.Context, userID string) ([]string, error) {
	return queryStrings(ctx, s.api, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.sharedWith),
		KeyConditionExpression:    aws.String("sharedWith = :userId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":userId": str(userID)},
	}, "timerId")
}
