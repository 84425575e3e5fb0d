package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhbiyani/cross-account-manager/pkg/crossaccount"
)

func s3Event(bucket string, keys ...string) events.S3Event {
	var ev events.S3Event
	for _, key := range keys {
		ev.Records = append(ev.Records, events.S3EventRecord{
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: key},
			},
		})
	}
	return ev
}

func TestObjectHandler(t *testing.T) {
	t.Run("dispatches_each_record", func(t *testing.T) {
		var seen []string
		h := objectHandler(func(ctx context.Context, bucket, key string) error {
			seen = append(seen, bucket+"/"+key)
			return nil
		})

		require.NoError(t, h(context.Background(), s3Event("cam-config", "accounts.yml", "roles.yml")))
		assert.Equal(t, []string{"cam-config/accounts.yml", "cam-config/roles.yml"}, seen)
	})

	t.Run("first_failure_aborts_batch", func(t *testing.T) {
		calls := 0
		h := objectHandler(func(ctx context.Context, bucket, key string) error {
			calls++
			return errors.New("boom")
		})

		require.Error(t, h(context.Background(), s3Event("cam-config", "a.yml", "b.yml")))
		assert.Equal(t, 1, calls)
	})
}

func snsEvent(messages ...string) events.SNSEvent {
	var ev events.SNSEvent
	for _, msg := range messages {
		ev.Records = append(ev.Records, events.SNSEventRecord{
			SNS: events.SNSEntity{Message: msg, MessageID: "m"},
		})
	}
	return ev
}

func TestMessageHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("decodes_wire_message", func(t *testing.T) {
		var got crossaccount.LifecycleEvent
		h := messageHandler(logger, func(ctx context.Context, ev crossaccount.LifecycleEvent) error {
			got = ev
			return nil
		})

		require.NoError(t, h(context.Background(), snsEvent(`{"Action":"ADD","SubAccountId":"222222222222"}`)))
		assert.Equal(t, crossaccount.LifecycleEvent{Action: crossaccount.ActionAdd, SubAccountID: "222222222222"}, got)
	})

	t.Run("skips_undecodable_message", func(t *testing.T) {
		calls := 0
		h := messageHandler(logger, func(ctx context.Context, ev crossaccount.LifecycleEvent) error {
			calls++
			return nil
		})

		require.NoError(t, h(context.Background(), snsEvent("{not json", `{"Action":"ADD","SubAccountId":"1"}`)))
		assert.Equal(t, 1, calls)
	})

	t.Run("handler_error_propagates", func(t *testing.T) {
		h := messageHandler(logger, func(ctx context.Context, ev crossaccount.LifecycleEvent) error {
			return errors.New("boom")
		})
		require.Error(t, h(context.Background(), snsEvent(`{"Action":"ADD","SubAccountId":"1"}`)))
	})
}
