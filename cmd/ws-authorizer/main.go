package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/urfave/cli/v2"

	notifyauth "github.com/word-collect/notification-service/notify-auth"
	notifycli "github.com/word-collect/notification-service/notify-cli"
	notifyparams "github.com/word-collect/notification-service/notify-params"
)

var service = notifycli.NewService("ws-authorizer")

var opts struct {
	AuthMode   string
	UserPoolID string
	Audience   string
	Region     string
	SecretName string
}

func main() {
	app := notifycli.App(
		service,
		action,
		append(
			append([]cli.Flag{}, notifycli.CommonFlags...),
			notifycli.StringFlag("auth-mode", "token verification mode: cognito or hmac", &opts.AuthMode, "cognito"),
			notifycli.StringFlag("user-pool-id", "Cognito user pool ID (looked up in SSM when unset)", &opts.UserPoolID),
			notifycli.StringFlag("audience", "app client ID the token must be issued for", &opts.Audience),
			notifycli.StringFlag("region", "region of the Cognito user pool", &opts.Region),
			notifycli.StringFlag("hmac-secret-name", "Secrets Manager secret holding the local-mode signing key", &opts.SecretName),
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	ctx := context.Background()
	sess := session.Must(session.NewSession(aws.NewConfig()))

	verifier, err := buildVerifier(ctx, sess)
	if err != nil {
		return err
	}

	authorizer := &notifyauth.Authorizer{
		Verifier: verifier,
		Logger:   notifycli.Logger(service),
	}

	lambda.Start(authorizer.HandleRequest)
	return nil
}

func buildVerifier(ctx context.Context, sess *session.Session) (notifyauth.TokenVerifier, error) {
	env := notifycli.CommonOpts.Env

	if opts.AuthMode == "hmac" {
		secretName := opts.SecretName
		if secretName == "" {
			secretName = env + "-word-collect--ws-hmac"
		}
		secret, err := notifyauth.LoadHMACSecret(sess, secretName)
		if err != nil {
			return nil, err
		}
		return &notifyauth.HMACVerifier{
			Secret:   secret,
			Audience: opts.Audience,
		}, nil
	}

	poolID, clientID := opts.UserPoolID, opts.Audience
	if poolID == "" || clientID == "" {
		var err error
		poolID, clientID, err = notifyparams.UserPool(ctx, ssm.New(sess), env)
		if err != nil {
			return nil, fmt.Errorf("resolving user pool parameters: %w", err)
		}
	}

	region := opts.Region
	if region == "" {
		region = aws.StringValue(sess.Config.Region)
	}

	return notifyauth.NewCognitoVerifier(ctx, region, poolID, clientID)
}
