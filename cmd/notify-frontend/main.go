package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/urfave/cli/v2"

	notifycli "github.com/word-collect/notification-service/notify-cli"
	notifyddb "github.com/word-collect/notification-service/notify-ddb"
	notifyparams "github.com/word-collect/notification-service/notify-params"
	notifyws "github.com/word-collect/notification-service/notify-ws"
	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

var service = notifycli.NewService("notify-frontend")

var opts struct {
	WsEndpoint  string
	Concurrency int
	PushTimeout time.Duration
	StreamName  string
	Replay      bool
}

func main() {
	app := notifycli.App(
		service,
		action,
		append(
			append([]cli.Flag{}, notifycli.CommonFlags...),
			append(notifyddb.DDBFlags,
				notifycli.StringFlag("ws-endpoint", "API Gateway management endpoint (looked up in SSM when unset)", &opts.WsEndpoint),
				notifycli.IntFlag("concurrency", "max concurrent pushes per event", &opts.Concurrency, 50),
				notifycli.DurationFlag("push-timeout", "per-connection push bound", &opts.PushTimeout, 10*time.Second),
				notifycli.StringFlag("stream-name", "bus mirror stream to tail in console mode", &opts.StreamName),
				notifycli.BoolFlag("replay", "tail the mirror stream from the trim horizon instead of latest", &opts.Replay),
			)...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	ctx := context.Background()
	env := notifycli.CommonOpts.Env
	sess := session.Must(session.NewSession(aws.NewConfig()))

	api, err := notifyddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}
	tableName := notifyddb.DDBOpts.TableName
	if tableName == "" {
		tableName = connectiondao.TableName(env)
	}

	endpoint := opts.WsEndpoint
	if endpoint == "" {
		if endpoint, err = notifyparams.ManagementEndpoint(ctx, ssm.New(sess), env); err != nil {
			return fmt.Errorf("resolving management endpoint: %w", err)
		}
	}
	gatewaySess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))

	metrics := notifycli.NewMetrics(service, cloudwatch.New(sess))
	dispatcher := &notifyws.Dispatcher{
		Connections: connectiondao.New(api, tableName),
		Gateway:     apigatewaymanagementapi.New(gatewaySess),
		Logger:      notifycli.Logger(service),
		Metrics:     &metrics,
		Concurrency: opts.Concurrency,
		PushTimeout: opts.PushTimeout,
	}

	if notifycli.CommonOpts.Console {
		streamName := opts.StreamName
		if streamName == "" {
			streamName = notifyws.MirrorStreamName(env)
		}
		return dispatcher.Tail(ctx, streamName, opts.Replay)
	}

	lambda.Start(dispatcher.HandleBusEvent)
	return nil
}
