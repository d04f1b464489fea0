// Package dynamo implements the store interfaces on DynamoDB tables.
//
// Table layout:
//
//	Timers        PK id
//	SharedTimers  PK timerId, SK sharedWith, GSI sharedWith
//	Connections   PK userId,  SK deviceId,   GSI connectionId
//	DeviceTokens  PK userId,  SK deviceId
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by the stores.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// New wires every store onto one client.
func New(api API, cfg config.StorageConfig) *store.Store {
	return &store.Store{
		Timers:       NewTimerStore(api, cfg.TimersTable),
		Sharing:      NewSharingStore(api, cfg.SharedTimersTable, cfg.SharedWithIndex),
		Connections:  NewConnectionStore(api, cfg.ConnectionsTable, cfg.ConnectionIDIndex),
		DeviceTokens: NewDeviceTokenStore(api, cfg.DeviceTokensTable),
		Ping: func(ctx context.Context) error {
			_, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TimersTable)})
			return err
		},
		Close: func() {},
	}
}

func str(v string) ddbtypes.AttributeValue {
	return &ddbtypes.AttributeValueMemberS{Value: v}
}

func isConditionFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// queryStrings runs a paginated query and collects one string attribute from every item.
func queryStrings(ctx context.Context, api API, input *dynamodb.QueryInput, attr string) ([]string, error) {
	var values []string
	paginator := dynamodb.NewQueryPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", aws.ToString(input.TableName), err)
		}
		for _, item := range page.Items {
			if v, ok := item[attr].(*ddbtypes.AttributeValueMemberS); ok && v.Value != "" {
				values = append(values, v.Value)
			}
		}
	}
	return values, nil
}
