package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// Notifier delivers one-off operational notifications.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// SESNotifier sends notifications as plain-text email through Amazon SES.
type SESNotifier struct {
	client *sesv2.Client
	from   string
	to     string
}

// NewSESNotifier builds a notifier using the ambient AWS credential chain.
func NewSESNotifier(ctx context.Context, from, to string) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: load AWS config: %w", err)
	}
	return &SESNotifier{client: sesv2.NewFromConfig(cfg), from: from, to: to}, nil
}

func (n *SESNotifier) Notify(ctx context.Context, subject, body string) error {
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{n.to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no ops mailbox is
// configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.log.Info("ops notification", zap.String("subject", subject), zap.String("body", body))
	return nil
}
