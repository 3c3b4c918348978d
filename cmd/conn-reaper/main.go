package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	notifycli "github.com/word-collect/notification-service/notify-cli"
	notifycron "github.com/word-collect/notification-service/notify-cron"
	notifyddb "github.com/word-collect/notification-service/notify-ddb"
	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

var service = notifycli.NewService("conn-reaper")

func main() {
	app := notifycli.App(
		service,
		action,
		append(
			append([]cli.Flag{}, notifycli.CommonFlags...),
			notifyddb.DDBFlags...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := notifyddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	tableName := notifyddb.DDBOpts.TableName
	if tableName == "" {
		tableName = connectiondao.TableName(notifycli.CommonOpts.Env)
	}
	dao := connectiondao.New(api, tableName)
	logger := notifycli.Logger(service)

	handler := notifycron.NewHandler(service, func(ctx context.Context) error {
		if notifycli.CommonOpts.Dry {
			logger.Info().Msg("dry run, skipping reap")
			return nil
		}
		reaped, err := dao.ReapExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("reaped", reaped).Msg("expired connections removed")
		return nil
	})

	return handler.Start()
}
