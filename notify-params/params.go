// Package notifyparams reads and writes the SSM parameters that wire the
// notification service to the rest of word-collect: the client-facing
// WebSocket endpoint, the API Gateway management endpoint the dispatcher
// pushes through, and the user-service identity pool configuration.
package notifyparams

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

func WsEndpointPath(env string) string {
	return fmt.Sprintf("/word-collect/%v/notification-service/ws-endpoint", env)
}

func ManagementEndpointPath(env string) string {
	return fmt.Sprintf("/word-collect/%v/notification-service/management-endpoint", env)
}

func UserPoolIDPath(env string) string {
	return fmt.Sprintf("/word-collect/%v/user-service/userPoolId", env)
}

func AppClientIDPath(env string) string {
	return fmt.Sprintf("/word-collect/%v/user-service/appClientId", env)
}

// PublishWsEndpoint records the externally reachable WebSocket address so
// other stacks can hand it to browser clients. Deploy-time wiring, not a
// runtime protocol.
func PublishWsEndpoint(ctx context.Context, api ssmiface.SSMAPI, env, endpoint string) error {
	return put(ctx, api, WsEndpointPath(env), endpoint)
}

// PublishManagementEndpoint records the management endpoint the fan-out
// dispatcher posts through.
func PublishManagementEndpoint(ctx context.Context, api ssmiface.SSMAPI, env, endpoint string) error {
	return put(ctx, api, ManagementEndpointPath(env), endpoint)
}

func ManagementEndpoint(ctx context.Context, api ssmiface.SSMAPI, env string) (string, error) {
	return get(ctx, api, ManagementEndpointPath(env))
}

// UserPool returns the Cognito user pool ID and app client ID published by
// the user service.
func UserPool(ctx context.Context, api ssmiface.SSMAPI, env string) (poolID, clientID string, err error) {
	if poolID, err = get(ctx, api, UserPoolIDPath(env)); err != nil {
		return "", "", err
	}
	if clientID, err = get(ctx, api, AppClientIDPath(env)); err != nil {
		return "", "", err
	}
	return poolID, clientID, nil
}

func put(ctx context.Context, api ssmiface.SSMAPI, name, value string) error {
	_, err := api.PutParameterWithContext(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      aws.String(ssm.ParameterTypeString),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to put parameter %v: %w", name, err)
	}
	return nil
}

func get(ctx context.Context, api ssmiface.SSMAPI, name string) (string, error) {
	output, err := api.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %v: %w", name, err)
	}
	return aws.StringValue(output.Parameter.Value), nil
}
