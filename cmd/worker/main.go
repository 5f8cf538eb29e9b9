package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-foodorder/internal/aws"
	"github.com/imrishuroy/go-foodorder/internal/config"
	"github.com/imrishuroy/go-foodorder/internal/logging"
	"github.com/imrishuroy/go-foodorder/internal/notify"
)

const sampleBody = `{"type":"order.confirmed","order_id":"local-order-1","user_id":1,"status":"Confirmed","payment_status":"paid","total":60000,"email":"customer@example.com","full_name":"Local Customer"}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New("foodorder-worker", cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	var mailer Mailer = notify.NewLogMailer(logger)
	if cfg.Mail.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	}

	var ledger Ledger = newMemoryLedger()
	if cfg.AWS.DeliveryTable != "" {
		clients, err := aws.NewClients(ctx, cfg.AWS.Region)
		if err != nil {
			logger.Error("failed to init aws clients", slog.Any("error", err))
			os.Exit(1)
		}
		ledger = NewDynamoLedger(clients.DynamoDB, cfg.AWS.DeliveryTable)
	}

	p := NewProcessor(mailer, ledger, logger)

	// If RUN_LOCAL=true, process one sample event and exit.
	if cfg.Server.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = sampleBody
		}
		resp, _ := p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}})
		if len(resp.BatchItemFailures) > 0 {
			logger.Error("local message failed")
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
