package notifyauth

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Authorizer is the Lambda REQUEST authorizer guarding the WebSocket $connect
// route. Clients pass their ID token as a `token` query parameter, with or
// without a Bearer prefix.
type Authorizer struct {
	Verifier TokenVerifier
	Logger   zerolog.Logger
}

// HandleRequest verifies the presented credential and answers with an allow
// policy carrying the identity in the authorizer context, or an explicit deny.
// Rejected connections never reach the lifecycle handler, so no registry
// record exists for them.
func (a *Authorizer) HandleRequest(ctx context.Context, req events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	raw := req.QueryStringParameters["token"]
	if raw == "" {
		a.Logger.Warn().Msg("connection attempt without token")
		return deny(req.MethodArn), nil
	}
	raw = strings.TrimPrefix(raw, "Bearer ")

	identity, err := a.Verifier.Verify(ctx, raw)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("token verification failed")
		return deny(req.MethodArn), nil
	}

	a.Logger.Info().Str("user_sub", identity.Sub).Msg("connection authorized")
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: identity.Sub,
		PolicyDocument: policy("Allow", req.MethodArn),
		Context: map[string]interface{}{
			// Forwarded to the $connect handler via the request context.
			"sub":   identity.Sub,
			"email": identity.Email,
		},
	}, nil
}

func deny(methodArn string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID:    "unauthorized",
		PolicyDocument: policy("Deny", methodArn),
	}
}

func policy(effect, methodArn string) events.APIGatewayCustomAuthorizerPolicy {
	return events.APIGatewayCustomAuthorizerPolicy{
		Version: "2012-10-17",
		Statement: []events.IAMPolicyStatement{
			{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{methodArn},
			},
		},
	}
}
