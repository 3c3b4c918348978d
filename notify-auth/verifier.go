// Package notifyauth verifies the bearer credential presented on WebSocket
// $connect and exposes the Lambda REQUEST authorizer built on top of it.
package notifyauth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/savaki/secrets"
)

// Identity is the verified identity extracted from a credential.
type Identity struct {
	Sub   string
	Email string
}

// TokenVerifier verifies a raw credential and returns the identity it
// asserts, or an error when the credential is missing, malformed, or fails
// verification.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

// CognitoVerifier verifies Cognito user-pool ID tokens: signature against the
// pool's JWKS, issuer, audience (app client ID), and expiry.
type CognitoVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewCognitoVerifier discovers the user pool's OIDC configuration and builds
// a verifier pinned to the given app client ID.
func NewCognitoVerifier(ctx context.Context, region, userPoolID, clientID string) (*CognitoVerifier, error) {
	issuer := fmt.Sprintf("https://cognito-idp.%v.amazonaws.com/%v", region, userPoolID)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering user pool %v: %w", userPoolID, err)
	}
	return &CognitoVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (c *CognitoVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	token, err := c.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}

	return &Identity{Sub: token.Subject, Email: claims.Email}, nil
}

// HMACVerifier verifies HS256 tokens against a shared secret. Local
// development mode only; production uses CognitoVerifier.
type HMACVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

type hmacClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (h *HMACVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if h.Issuer != "" {
		options = append(options, jwt.WithIssuer(h.Issuer))
	}
	if h.Audience != "" {
		options = append(options, jwt.WithAudience(h.Audience))
	}

	var claims hmacClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return h.Secret, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return &Identity{Sub: claims.Subject, Email: claims.Email}, nil
}

// LoadHMACSecret fetches the local-mode signing secret from Secrets Manager.
func LoadHMACSecret(s *session.Session, secretName string) ([]byte, error) {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}

	var data struct {
		Secret string `json:"secret"`
	}
	if err := manager.Decode(secretName, &data); err != nil {
		return nil, fmt.Errorf("failed to load secret %v: %w", secretName, err)
	}
	if data.Secret == "" {
		return nil, fmt.Errorf("secret %v has no secret field", secretName)
	}
	return []byte(data.Secret), nil
}
