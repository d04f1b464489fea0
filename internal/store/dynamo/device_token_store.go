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

type DeviceTokenStore struct {
	api   API
	table string
}

func NewDeviceTokenStore(api API, table string) *DeviceTokenStore {
	return &DeviceTokenStore{api: api, table: table}
}

func (s *DeviceTokenStore) key(userID, deviceID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"userId":   str(userID),
		"deviceId": str(deviceID),
	}
}

// SaveDeviceToken upserts the registration. Stored preferences survive a
// re-registration; new rows get token.Preferences.
func (s *DeviceTokenStore) SaveDeviceToken(ctx context.Context, token *types.DeviceToken) error {
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":token":    token.PushToken,
		":platform": token.Platform,
		":lastUsed": token.LastUsed.UTC(),
		":prefs":    token.Preferences,
	})
	if err != nil {
		return fmt.Errorf("encode device token: %w", err)
	}

	if _, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(token.UserID, token.DeviceID),
		UpdateExpression: aws.String("SET fcmToken = :token, platform = :platform, lastUsed = :lastUsed, " +
			"notificationPreferences = if_not_exists(notificationPreferences, :prefs)"),
		ExpressionAttributeValues: values,
	}); err != nil {
		return fmt.Errorf("save device token %s/%s: %w", token.UserID, token.DeviceID, err)
	}
	return nil
}

func (s *DeviceTokenStore) GetDeviceTokens(ctx context.Context, userID string) ([]types.DeviceToken, error) {
	var tokens []types.DeviceToken
	paginator := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":userId": str(userID)},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get device tokens for %s: %w", userID, err)
		}
		var batch []types.DeviceToken
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode device tokens for %s: %w", userID, err)
		}
		tokens = append(tokens, batch...)
	}
	return tokens, nil
}

func (s *DeviceTokenStore) DeleteDeviceToken(ctx context.Context, userID, deviceID string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID, deviceID),
	}); err != nil {
		return fmt.Errorf("delete device token %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

// TouchDeviceToken refreshes lastUsed without resurrecting a deleted row.
func (s *DeviceTokenStore) TouchDeviceToken(ctx context.Context, userID, deviceID string, at time.Time) error {
	lastUsed, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return fmt.Errorf("encode timestamp: %w", err)
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(userID, deviceID),
		UpdateExpression:          aws.String("SET lastUsed = :lastUsed"),
		ConditionExpression:       aws.String("attribute_exists(userId)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":lastUsed": lastUsed},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("touch device token %s/%s: %w", userID, deviceID, err)
	}
	return nil
}

func (s *DeviceTokenStore) UpdatePreferences(ctx context.Context, userID, deviceID string, prefs types.NotificationPreferences) error {
	encoded, err := attributevalue.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(userID, deviceID),
		UpdateExpression:          aws.String("SET notificationPreferences = :prefs"),
		ConditionExpression:       aws.String("attribute_exists(userId)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":prefs": encoded},
	})
	if isConditionFailed(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update preferences %s/%s: %w", userID, deviceID, err)
	}
	return nil
}
