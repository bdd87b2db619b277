package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/strandpine/warden/internal/models"
	pkglogger "github.com/strandpine/warden/pkg/logger"
)

// sendTimeout bounds one SES call. Emit returns before the send
// completes, so the login path never waits on the mail transport.
const sendTimeout = 10 * time.Second

// Mailer emails security incidents to an operator address via AWS
// SES. It implements the security event sink contract and ignores
// every event type except incidents. Send failures are logged and
// dropped.
type Mailer struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewMailer builds a Mailer using the ambient AWS credential chain.
func NewMailer(ctx context.Context, region, fromAddress, toAddress string, logger *slog.Logger) (*Mailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Mailer{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// Emit sends incident events by email. The send happens on its own
// goroutine with a fresh timeout context; the caller's context is
// typically request-scoped and may be gone before SES answers.
func (m *Mailer) Emit(_ context.Context, event models.SecurityEvent) {
	if event.Type != models.EventSecurityIncident {
		return
	}
	go m.send(event)
}

func (m *Mailer) send(event models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject := fmt.Sprintf("Security incident: %s", pkglogger.SanitizedIdentity(event.Identity))
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{m.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(incidentBody(event)),
				},
			},
		},
	}

	result, err := m.sesClient.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send incident alert via SES",
			slog.String("event_id", event.ID),
			slog.Any("error", err))
		return
	}

	m.logger.Info("incident alert sent",
		slog.String("event_id", event.ID),
		slog.String("message_id", *result.MessageId))
}

func incidentBody(event models.SecurityEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A security incident was recorded.\n\n")
	fmt.Fprintf(&b, "Event ID:   %s\n", event.ID)
	fmt.Fprintf(&b, "Identity:   %s\n", pkglogger.SanitizedIdentity(event.Identity))
	fmt.Fprintf(&b, "Address:    %s\n", event.Address)
	fmt.Fprintf(&b, "Risk score: %d\n", event.RiskScore)
	fmt.Fprintf(&b, "Time:       %s\n", event.Timestamp.Format(time.RFC3339))

	if len(event.Metadata) > 0 {
		fmt.Fprintf(&b, "\nDetails:\n")
		keys := make([]string, 0, len(event.Metadata))
		for key := range event.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", key, event.Metadata[key])
		}
	}

	fmt.Fprintf(&b, "\nThis is an automated message. Please do not reply to this email.\n")
	return b.String()
}
