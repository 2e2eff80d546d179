package firebase

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"oysloe/internal/domain/entity"
)

// FCM accepts at most 500 messages per SendEach call.
const maxBatch = 500

// batchSender is the part of *messaging.Client the push path needs.
type batchSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// MessagingClient delivers push notifications through FCM.
type MessagingClient struct {
	client         batchSender
	isUnregistered func(error) bool
}

func NewMessagingClient(client *messaging.Client) *MessagingClient {
	return &MessagingClient{client: client, isUnregistered: messaging.IsUnregistered}
}

// Send delivers every chunk even when one fails. The result always carries the
// tokens FCM reported unregistered, also when the error is non-nil.
func (m *MessagingClient) Send(ctx context.Context, batch []entity.PushMessage) (*entity.PushResult, error) {
	result := &entity.PushResult{}
	var errs []error
	for start := 0; start < len(batch); start += maxBatch {
		end := start + maxBatch
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]

		resp, err := m.client.SendEach(ctx, toMessages(chunk))
		if err != nil {
			result.Failed += len(chunk)
			errs = append(errs, fmt.Errorf("fcm send tokens %d-%d: %w", start, end-1, err))
			continue
		}
		result.Sent += resp.SuccessCount
		result.Failed += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Error != nil && m.isUnregistered(r.Error) {
				result.InvalidTokens = append(result.InvalidTokens, chunk[i].Token)
			}
		}
	}
	return result, errors.Join(errs...)
}

func toMessages(batch []entity.PushMessage) []*messaging.Message {
	out := make([]*messaging.Message, 0, len(batch))
	for _, p := range batch {
		out = append(out, &messaging.Message{
			Token: p.Token,
			Notification: &messaging.Notification{
				Title: p.Title,
				Body:  p.Body,
			},
			Data: p.Data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
			},
		})
	}
	return out
}
