package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type ConnectionStore struct {
	api          API
	table        string
	connectionID string
	now          func() time.Time
}

func NewConnectionStore(api API, table, connectionIDIndex string) *ConnectionStore {
	return &ConnectionStore{api: api, table: table, connectionID: connectionIDIndex, now: time.Now}
}

func (s *ConnectionStore) key(userID, deviceID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"userId":   str(userID),
		"deviceId": str(deviceID),
	}
}

func (s *ConnectionStore) SaveConnection(ctx context.Context, userID, deviceID, connectionID string) error {
	item, err := attributevalue.MarshalMap(types.Connection{
		UserID:       userID,
		DeviceID:     deviceID,
		ConnectionID: connectionID,
		UpdatedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode connection: %w", err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("save connection %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

// ClearConnection removes the handle from the row but keeps the row itself.
func (s *ConnectionStore) ClearConnection(ctx context.Context, userID, deviceID, connectionID string) error {
	now, err := attributevalue.Marshal(s.now().UTC())
	if err != nil {
		return fmt.Errorf("encode timestamp: %w", err)
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(userID, deviceID),
		UpdateExpression:    aws.String("REMOVE connectionId SET updatedAt = :now"),
		ConditionExpression: aws.String("connectionId = :connectionId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":connectionId": str(connectionID),
			":now":          now,
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("clear connection %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *ConnectionStore) LookupConnection(ctx context.Context, connectionID string) (*types.Connection, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.connectionID),
		KeyConditionExpression:    aws.String("connectionId = :connectionId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":connectionId": str(connectionID)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup connection %s: %w", connectionID, err)
	}
	if len(out.Items) == 0 {
		return nil, store.ErrNotFound
	}

	var conn types.Connection
	if err := attributevalue.UnmarshalMap(out.Items[0], &conn); err != nil {
		return nil, fmt.Errorf("decode connection %s: %w", connectionID, err)
	}
	return &conn, nil
}

// ListUserConnections returns only devices that currently hold a handle.
func (s *ConnectionStore) ListUserConnections(ctx context.Context, userID string) ([]types.Connection, error) {
	var conns []types.Connection
	paginator := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("userId = :userId"),
		FilterExpression:          aws.String("attribute_exists(connectionId)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":userId": str(userID)},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list connections for %s: %w", userID, err)
		}
		var batch []types.Connection
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode connections for %s: %w", userID, err)
		}
		for _, c := range batch {
			if c.Live() {
				conns = append(conns, c)
			}
		}
	}
	return conns, nil
}
