// Package dynamo implements the user store on a DynamoDB table keyed by
// id (hash) and organization_id (range), with an organization_id GSI for
// member listings.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/authcore-io/authcore/internal/auth"
)

const organizationIndex = "organization_id-index"

// DynamoAPI is the slice of the AWS client this package uses.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is the DynamoDB-backed auth.UserStore.
type Store struct {
	client DynamoAPI
	table  string
}

// New wraps an already configured DynamoDB client.
func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// GetByID looks the user up by its subject id.
func (s *Store) GetByID(ctx context.Context, id string) (auth.User, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#id = :id"),
		ExpressionAttributeNames: map[string]string{
			"#id": auth.AttrID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return auth.User{}, auth.ErrUpstream.With(fmt.Errorf("query user %s: %w", id, err))
	}
	if len(out.Items) == 0 {
		return auth.User{}, auth.ErrUserNotFound
	}
	return userFromItem(out.Items[0])
}

// ListByOrganization queries the organization GSI.
func (s *Store) ListByOrganization(ctx context.Context, orgID string) ([]auth.User, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(organizationIndex),
		KeyConditionExpression: aws.String("#org = :org"),
		ExpressionAttributeNames: map[string]string{
			"#org": auth.AttrOrganizationID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":org": &types.AttributeValueMemberS{Value: orgID},
		},
	})
	if err != nil {
		return nil, auth.ErrUpstream.With(fmt.Errorf("query organization %s: %w", orgID, err))
	}
	users := make([]auth.User, 0, len(out.Items))
	for _, item := range out.Items {
		u, err := userFromItem(item)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Put writes the full record.
func (s *Store) Put(ctx context.Context, user auth.User) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      itemFromUser(user),
	})
	if err != nil {
		return auth.ErrUpstream.With(fmt.Errorf("put user %s: %w", user.ID, err))
	}
	return nil
}

// Update overwrites the mutable attributes and returns the stored record.
func (s *Store) Update(ctx context.Context, user auth.User) (auth.User, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       keyFor(user.ID, user.OrganizationID),
		UpdateExpression: aws.String(
			"SET #email = :email, #user_name = :user_name, #organization_name = :organization_name, #roles = :roles"),
		ExpressionAttributeNames: map[string]string{
			"#id":                auth.AttrID,
			"#email":             auth.AttrEmail,
			"#user_name":         auth.AttrUserName,
			"#organization_name": auth.AttrOrganizationName,
			"#roles":             auth.AttrRoles,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email":             &types.AttributeValueMemberS{Value: user.Email},
			":user_name":         &types.AttributeValueMemberS{Value: user.Name},
			":organization_name": &types.AttributeValueMemberS{Value: user.OrganizationName},
			":roles":             &types.AttributeValueMemberS{Value: user.Roles.Encode()},
		},
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, auth.ErrUpstream.With(fmt.Errorf("update user %s: %w", user.ID, err))
	}
	return userFromItem(out.Attributes)
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id, orgID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyFor(id, orgID),
	})
	if err != nil {
		return auth.ErrUpstream.With(fmt.Errorf("delete user %s: %w", id, err))
	}
	return nil
}

// FindOrganizationIDByName scans for a record carrying the name and returns
// its organization id, or ("", nil) when no organization matches.
func (s *Store) FindOrganizationIDByName(ctx context.Context, name string) (string, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("#organization_name = :name"),
		ExpressionAttributeNames: map[string]string{
			"#organization_name": auth.AttrOrganizationName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: name},
		},
		ProjectionExpression: aws.String(auth.AttrOrganizationID),
	}
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return "", auth.ErrUpstream.With(fmt.Errorf("scan organization %q: %w", name, err))
		}
		for _, item := range out.Items {
			if v, ok := item[auth.AttrOrganizationID].(*types.AttributeValueMemberS); ok && v.Value != "" {
				return v.Value, nil
			}
		}
		if out.LastEvaluatedKey == nil {
			return "", nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func keyFor(id, orgID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		auth.AttrID:             &types.AttributeValueMemberS{Value: id},
		auth.AttrOrganizationID: &types.AttributeValueMemberS{Value: orgID},
	}
}

func itemFromUser(user auth.User) map[string]types.AttributeValue {
	attrs := user.Attributes()
	item := make(map[string]types.AttributeValue, len(attrs))
	for name, value := range attrs {
		item[name] = &types.AttributeValueMemberS{Value: value}
	}
	return item
}

func userFromItem(item map[string]types.AttributeValue) (auth.User, error) {
	attrs := make(map[string]string, len(item))
	for name, value := range item {
		s, ok := value.(*types.AttributeValueMemberS)
		if !ok {
			return auth.User{}, auth.ErrUpstream.Withf("attribute %s is not a string", name)
		}
		attrs[name] = s.Value
	}
	u, err := auth.UserFromAttributes(attrs)
	if err != nil {
		return auth.User{}, auth.ErrUpstream.With(fmt.Errorf("decode user item: %w", err))
	}
	return u, nil
}
