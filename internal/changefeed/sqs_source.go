package changefeed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/naigggs/hau2park.web-sub001/internal/config"
)

// SQSSource pumps change notifications produced outside this process (the
// campus database triggers publish row changes to an SQS queue) into the
// local Bus, where subscribers pick them up per topic.
type SQSSource struct {
	sqsClient *sqs.Client
	queueURL  string
	bus       *Bus
}

func NewSQSSource(client *sqs.Client, cfg *config.Config, bus *Bus) *SQSSource {
	return &SQSSource{
		sqsClient: client,
		queueURL:  cfg.SQSChangeQueueURL,
		bus:       bus,
	}
}

func (s *SQSSource) Start(ctx context.Context) {
	log.Printf("SQS source: listening on queue: %s", s.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS source: context cancelled, stopping.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &s.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := s.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("SQS source: receive failed: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("SQS source: context cancelled while waiting for retry.")
					return
				}
				continue
			}

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("SQS source: message with empty body, deleting.")
					s.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				var ev Event
				if err := json.Unmarshal([]byte(*message.Body), &ev); err != nil {
					log.Printf("SQS source: undecodable message ID %s: %v. Deleting.", *message.MessageId, err)
					s.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				s.bus.Publish(ev)
				s.deleteMessage(ctx, message.ReceiptHandle)
			}
		}
	}
}

func (s *SQSSource) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS source: empty receipt handle, cannot delete message.")
		return
	}
	_, delErr := s.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &s.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS source: delete failed: %v", delErr)
	}
}
