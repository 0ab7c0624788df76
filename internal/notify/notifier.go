// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"quote-engine/internal/common/config"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/models"
)

// Notifier tells an underwriting team that a session needs human review.
type Notifier interface {
	NotifyEscalation(ctx context.Context, sessionID string, esc *models.Escalation) error
}

// AWSNotifier delivers escalation notices over SES email and optionally an
// SNS topic. Either channel can be disabled through configuration.
type AWSNotifier struct {
	sesClient *ses.Client
	snsClient *sns.Client
	cfg       config.NotifyConfig
	logger    logger.Logger
}

func NewAWSNotifier(ctx context.Context, cfg config.NotifyConfig, log logger.Logger) (*AWSNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSNotifier{
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}, nil
}

func (n *AWSNotifier) NotifyEscalation(ctx context.Context, sessionID string, esc *models.Escalation) error {
	subject := fmt.Sprintf("Quote escalation: session %s", sessionID)
	body := escalationBody(sessionID, esc)

	if n.cfg.Email.Enabled {
		_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
			Source: aws.String(n.cfg.Email.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: []string{n.cfg.Email.ToEmail},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("send escalation email: %w", err)
		}
	}

	if n.cfg.SMS.Enabled {
		_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.cfg.SMS.TopicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(body),
		})
		if err != nil {
			return fmt.Errorf("publish escalation: %w", err)
		}
	}

	n.logger.Info("escalation notified", map[string]interface{}{
		"sessionId": sessionID,
		"reason":    esc.Reason,
	})
	return nil
}

func escalationBody(sessionID string, esc *models.Escalation) string {
	body := fmt.Sprintf("Session %s requires underwriter review.\nReason: %s\n", sessionID, esc.Reason)
	if esc.Quote != nil {
		body += fmt.Sprintf("Indicated premium: %d (limit %d, table %s)\n",
			esc.Quote.Premium, esc.Quote.Limit, esc.Quote.TableVersion)
	}
	return body
}

// NoOpNotifier is used when no notification channel is configured.
type NoOpNotifier struct{}

func (NoOpNotifier) NotifyEscalation(context.Context, string, *models.Escalation) error { return nil }
