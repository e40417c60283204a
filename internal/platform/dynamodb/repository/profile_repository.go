package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	commonErrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
	"github.com/codecraftes/mottu-yard/internal/domain/session"
	"github.com/codecraftes/mottu-yard/internal/platform/dynamodb/client"
)

const (
	profileSK   = "PROFILE"
	profileType = "UserProfile"
)

// profileItem is the stored form of a profile record. NomeSocial is the
// display name attribute other surfaces of the product read.
type profileItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Type       string `dynamodbav:"Type"`
	UserID     string `dynamodbav:"UserID"`
	NomeSocial string `dynamodbav:"NomeSocial"`
	Email      string `dynamodbav:"Email"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// DynamoDBProfileRepository implements session.ProfileStore
type DynamoDBProfileRepository struct {
	client client.Client
	table  string
	log    *zap.Logger
	now    func() time.Time
}

// NewDynamoDBProfileRepository creates a new DynamoDBProfileRepository
func NewDynamoDBProfileRepository(client client.Client, table string, log *zap.Logger) *DynamoDBProfileRepository {
	return &DynamoDBProfileRepository{
		client: client,
		table:  table,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func profileKey(id session.Identity) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(id)},
		"SK": &types.AttributeValueMemberS{Value: profileSK},
	}
}

func userPK(id session.Identity) string {
	return fmt.Sprintf("USER#%s", id)
}

// CreateProfile stores a new profile. An existing profile is a conflict.
func (r *DynamoDBProfileRepository) CreateProfile(ctx context.Context, profile session.ProfileRecord) error {
	now := r.now().Format(time.RFC3339)
	item, err := attributevalue.MarshalMap(profileItem{
		PK:         userPK(profile.Identity),
		SK:         profileSK,
		Type:       profileType,
		UserID:     string(profile.Identity),
		NomeSocial: profile.DisplayName,
		Email:      profile.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal profile", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailedErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailedErr) {
			return commonErrors.NewConflictError("profile already exists")
		}
		return commonErrors.NewInternalError("failed to create profile", err)
	}

	r.log.Debug("Profile created", zap.String("identity", string(profile.Identity)))
	return nil
}

// GetProfile returns the profile for id. found is false when none exists.
func (r *DynamoDBProfileRepository) GetProfile(ctx context.Context, id session.Identity) (session.ProfileRecord, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            profileKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return session.ProfileRecord{}, false, commonErrors.NewInternalError("failed to get profile", err)
	}
	if len(out.Item) == 0 {
		return session.ProfileRecord{}, false, nil
	}

	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return session.ProfileRecord{}, false, commonErrors.NewInternalError("failed to unmarshal profile", err)
	}

	return session.ProfileRecord{
		Identity:    id,
		DisplayName: item.NomeSocial,
		Email:       item.Email,
	}, true, nil
}

// UpdateDisplayName changes NomeSocial on an existing profile.
func (r *DynamoDBProfileRepository) UpdateDisplayName(ctx context.Context, id session.Identity, displayName string) error {
	update := expression.
		Set(expression.Name("NomeSocial"), expression.Value(displayName)).
		Set(expression.Name("UpdatedAt"), expression.Value(r.now().Format(time.RFC3339)))
	condition := expression.AttributeExists(expression.Name("PK"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return commonErrors.NewInternalError("failed to build update expression", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       profileKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionFailedErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailedErr) {
			return commonErrors.NewProfileNotFoundError("no profile record for " + string(id))
		}
		return commonErrors.NewInternalError("failed to update profile", err)
	}
	return nil
}
