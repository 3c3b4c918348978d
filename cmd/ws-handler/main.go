package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	notifycli "github.com/word-collect/notification-service/notify-cli"
	notifyddb "github.com/word-collect/notification-service/notify-ddb"
	notifyws "github.com/word-collect/notification-service/notify-ws"
	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

var service = notifycli.NewService("ws-handler")

var opts struct {
	ConnTTL        time.Duration
	AllowAnonymous bool
}

func main() {
	app := notifycli.App(
		service,
		action,
		append(
			append([]cli.Flag{}, notifycli.CommonFlags...),
			append(notifyddb.DDBFlags,
				notifycli.DurationFlag("conn-ttl", "retention horizon for connection records", &opts.ConnTTL, 24*time.Hour),
				notifycli.BoolFlag("allow-anonymous", "admit connections without a verified identity into the anonymous bucket", &opts.AllowAnonymous),
			)...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	if notifycli.CommonOpts.Console {
		return fmt.Errorf("ws-handler has no console mode; lifecycle events only arrive via API Gateway")
	}

	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := notifyddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	tableName := notifyddb.DDBOpts.TableName
	if tableName == "" {
		tableName = connectiondao.TableName(notifycli.CommonOpts.Env)
	}

	handler := &notifyws.Handler{
		Connections:    connectiondao.New(api, tableName),
		Logger:         notifycli.Logger(service),
		ConnTTL:        opts.ConnTTL,
		AllowAnonymous: opts.AllowAnonymous,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
