// Package idp implements the identity-provider seam on top of Amazon
// Cognito user pools.
package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/authcore-io/authcore/internal/auth"
)

// CognitoAPI is the slice of the AWS client this package uses.
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cognito.AdminCreateUserInput, optFns ...func(*cognito.Options)) (*cognito.AdminCreateUserOutput, error)
	AdminDeleteUser(ctx context.Context, params *cognito.AdminDeleteUserInput, optFns ...func(*cognito.Options)) (*cognito.AdminDeleteUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cognito.AdminSetUserPasswordInput, optFns ...func(*cognito.Options)) (*cognito.AdminSetUserPasswordOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cognito.AdminUpdateUserAttributesInput, optFns ...func(*cognito.Options)) (*cognito.AdminUpdateUserAttributesOutput, error)
	InitiateAuth(ctx context.Context, params *cognito.InitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.InitiateAuthOutput, error)
}

// Cognito adapts a user pool to the auth.IdentityProvider interface.
type Cognito struct {
	client     CognitoAPI
	userPoolID string
	clientID   string
}

// New builds the adapter for the given pool and app client.
func New(client CognitoAPI, userPoolID, clientID string) *Cognito {
	return &Cognito{client: client, userPoolID: userPoolID, clientID: clientID}
}

// CreateAccount provisions the account with invitation mail suppressed and
// returns the pool-assigned subject id.
func (c *Cognito) CreateAccount(ctx context.Context, email string) (string, error) {
	out, err := c.client.AdminCreateUser(ctx, &cognito.AdminCreateUserInput{
		UserPoolId:             aws.String(c.userPoolID),
		Username:               aws.String(email),
		MessageAction:          types.MessageActionTypeSuppress,
		DesiredDeliveryMediums: []types.DeliveryMediumType{types.DeliveryMediumTypeEmail},
	})
	if err != nil {
		return "", mapProviderError("admin create user", err)
	}
	if out.User == nil {
		return "", auth.ErrUpstream.Withf("admin create user: empty user in response")
	}
	for _, attr := range out.User.Attributes {
		if aws.ToString(attr.Name) == "sub" {
			if sub := aws.ToString(attr.Value); sub != "" {
				return sub, nil
			}
		}
	}
	return "", auth.ErrUpstream.Withf("admin create user: no sub attribute")
}

// DeleteAccount removes the account from the pool.
func (c *Cognito) DeleteAccount(ctx context.Context, username string) error {
	_, err := c.client.AdminDeleteUser(ctx, &cognito.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return mapProviderError("admin delete user", err)
	}
	return nil
}

// SetPassword sets the account password, skipping the forced-change state
// when permanent is true.
func (c *Cognito) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	_, err := c.client.AdminSetUserPassword(ctx, &cognito.AdminSetUserPasswordInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		Permanent:  permanent,
	})
	if err != nil {
		return mapProviderError("admin set user password", err)
	}
	return nil
}

// MarkEmailVerified flips the email_verified attribute so password auth
// works without a confirmation round-trip.
func (c *Cognito) MarkEmailVerified(ctx context.Context, username string) error {
	_, err := c.client.AdminUpdateUserAttributes(ctx, &cognito.AdminUpdateUserAttributesInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
	})
	if err != nil {
		return mapProviderError("admin update user attributes", err)
	}
	return nil
}

// PasswordAuth runs the USER_PASSWORD_AUTH flow.
func (c *Cognito) PasswordAuth(ctx context.Context, username, email, password, secretHash string) (auth.TokenSet, error) {
	out, err := c.client.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME":    username,
			"EMAIL":       email,
			"PASSWORD":    password,
			"SECRET_HASH": secretHash,
		},
	})
	if err != nil {
		return auth.TokenSet{}, mapProviderError("initiate auth", err)
	}
	return tokenSetFromAuthResult(out.AuthenticationResult)
}

// RefreshAuth runs the REFRESH_TOKEN flow.
func (c *Cognito) RefreshAuth(ctx context.Context, refreshToken, secretHash string) (auth.TokenSet, error) {
	out, err := c.client.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeRefreshToken,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
			"SECRET_HASH":   secretHash,
		},
	})
	if err != nil {
		return auth.TokenSet{}, mapProviderError("initiate auth refresh", err)
	}
	return tokenSetFromAuthResult(out.AuthenticationResult)
}

func tokenSetFromAuthResult(result *types.AuthenticationResultType) (auth.TokenSet, error) {
	if result == nil {
		return auth.TokenSet{}, auth.ErrUpstream.Withf("initiate auth: empty authentication result")
	}
	return auth.TokenSet{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

// mapProviderError translates pool error codes into the service's typed
// errors. Anything unrecognized surfaces as an upstream failure with the
// operation name attached, never the credentials involved.
func mapProviderError(op string, err error) error {
	var (
		usernameExists  *types.UsernameExistsException
		notAuthorized   *types.NotAuthorizedException
		userNotFound    *types.UserNotFoundException
		invalidPassword *types.InvalidPasswordException
	)
	switch {
	case errors.As(err, &usernameExists):
		return auth.ErrUserAlreadyExists
	case errors.As(err, &notAuthorized), errors.As(err, &userNotFound):
		return auth.ErrAuthenticationFailed
	case errors.As(err, &invalidPassword):
		return auth.ErrInvalidPassword
	default:
		return auth.ErrUpstream.With(fmt.Errorf("%s: %w", op, err))
	}
}
