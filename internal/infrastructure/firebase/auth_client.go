package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient resolves Firebase ID tokens to user ids. With checkRevoked set,
// tokens of signed-out or disabled accounts are refused at the cost of a lookup per call.
type FirebaseAuthClient struct {
	client       *auth.Client
	checkRevoked bool
}

func NewFirebaseAuthClient(client *auth.Client, checkRevoked bool) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client:       client,
		checkRevoked: checkRevoked,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	var (
		result *auth.Token
		err    error
	)
	if f.checkRevoked {
		result, err = f.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	} else {
		result, err = f.client.VerifyIDToken(ctx, token)
	}
	if err != nil {
		if auth.IsIDTokenRevoked(err) || auth.IsUserDisabled(err) {
			return "", fmt.Errorf("token no longer valid: %w", err)
		}
		return "", fmt.Errorf("verify id token: %w", err)
	}
	return result.UID, nil
}
