package dynamo

import (
	"context"
	"fmt"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type TimerStore struct {
	api   API
	table string
}

func NewTimerStore(api API, table string) *TimerStore {
	return &TimerStore{api: api, table: table}
}

func (s *TimerStore) key(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{"id": str(id)}
}

func (s *TimerStore) GetTimer(ctx context.Context, id string) (*types.Timer, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get timer %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}

	var timer types.Timer
	if err := attributevalue.UnmarshalMap(out.Item, &timer); err != nil {
		return nil, fmt.Errorf("decode timer %s: %w", id, err)
	}
	return &timer, nil
}

func (s *TimerStore) PutTimer(ctx context.Context, timer *types.Timer) error {
	item, err := attributevalue.MarshalMap(timer)
	if err != nil {
		return fmt.Errorf("encode timer %s: %w", timer.ID, err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put timer %s: %w", timer.ID, err)
	}
	return nil
}

func (s *TimerStore) DeleteTimer(ctx context.Context, id string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(id),
	}); err != nil {
		return fmt.Errorf("delete timer %s: %w", id, err)
	}
	return nil
}
