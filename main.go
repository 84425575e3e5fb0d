// Command cross-account-manager is the Lambda entry point for the
// cross-account role manager. One binary serves every function in the
// deployment; the HANDLER environment variable selects which event
// handler runs:
//
//	account-file   S3 upload of an account definition (home account)
//	role-file      S3 upload of a role definition (home account)
//	account-event  SNS lifecycle event from a member account
//	role-event     SNS provisioning request for a member account
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
	"github.com/anirudhbiyani/cross-account-manager/pkg/identity"
	"github.com/anirudhbiyani/cross-account-manager/pkg/messaging"
	"github.com/anirudhbiyani/cross-account-manager/pkg/registry"
	"github.com/anirudhbiyani/cross-account-manager/pkg/storage"
)

func main() {
	cfg, err := crossaccount.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	handler := os.Getenv("HANDLER")
	h, err := buildHandler(context.Background(), cfg, logger, handler)
	if err != nil {
		logger.Error("startup failed", "handler", handler, "error", err)
		os.Exit(1)
	}
	lambda.Start(h)
}

// buildHandler wires the adapters and returns the Lambda handler named
// by kind.
func buildHandler(ctx context.Context, cfg *crossaccount.Config, logger *slog.Logger, kind string) (any, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	db := dynamodb.NewFromConfig(awscfg)
	accounts := registry.NewAccountStore(db, cfg.AccountsTable)
	roles := registry.NewRoleStore(db, cfg.RolesTable)
	bindings := registry.NewBindingStore(db, cfg.BindingsTable)
	ids := identity.New(awscfg, identity.WithLogger(logger))
	publisher := messaging.NewPublisher(sns.NewFromConfig(awscfg), messaging.WithPublisherLogger(logger))
	blobs := storage.NewStore(s3.NewFromConfig(awscfg))

	switch kind {
	case "account-file":
		ing := crossaccount.NewIngestor(cfg, accounts, roles, bindings, ids, publisher, blobs,
			crossaccount.WithIngestorLogger(logger))
		return objectHandler(ing.HandleAccountFile), nil
	case "role-file":
		ing := crossaccount.NewIngestor(cfg, accounts, roles, bindings, ids, publisher, blobs,
			crossaccount.WithIngestorLogger(logger))
		return objectHandler(ing.HandleRoleFile), nil
	case "account-event":
		rec := crossaccount.NewReconciler(cfg, accounts, roles, bindings, ids, publisher, blobs,
			crossaccount.WithReconcilerLogger(logger))
		return messageHandler(logger, rec.HandleAccountEvent), nil
	case "role-event":
		prov := crossaccount.NewProvisioner(cfg, bindings, ids, publisher,
			crossaccount.WithProvisionerLogger(logger))
		return messageHandler(logger, prov.HandleRoleEvent), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", kind)
	}
}

// objectHandler adapts a bucket/key handler to an S3 event source. The
// first failure aborts the batch so the event source retries it.
func objectHandler(fn func(ctx context.Context, bucket, key string) error) func(context.Context, events.S3Event) error {
	return func(ctx context.Context, event events.S3Event) error {
		for _, rec := range event.Records {
			if err := fn(ctx, rec.S3.Bucket.Name, rec.S3.Object.Key); err != nil {
				return err
			}
		}
		return nil
	}
}

// messageHandler adapts a typed message handler to an SNS event source.
// Undecodable messages are logged and skipped rather than retried, since
// redelivery cannot fix them.
func messageHandler[T any](logger *slog.Logger, fn func(ctx context.Context, msg T) error) func(context.Context, events.SNSEvent) error {
	return func(ctx context.Context, event events.SNSEvent) error {
		for _, rec := range event.Records {
			var msg T
			if err := json.Unmarshal([]byte(rec.SNS.Message), &msg); err != nil {
				logger.Error("dropping undecodable message", "message_id", rec.SNS.MessageID, "error", err)
				continue
			}
			if err := fn(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
