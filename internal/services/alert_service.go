package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

// AWSSESAlertService emails security incident alerts to the operations
// mailbox using AWS SES
type AWSSESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	recipient   string
	logger      *slog.Logger
}

// NewAWSSESAlertService creates a new AWS SES alert service
func NewAWSSESAlertService(region, fromAddress, recipient string, logger *slog.Logger) (*AWSSESAlertService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		recipient:   recipient,
		logger:      logger,
	}, nil
}

// SendLockoutAlert notifies operations that an account was locked after
// repeated failed logins
func (s *AWSSESAlertService) SendLockoutAlert(ctx context.Context, email string, failedAttempts int, lockedUntil time.Time) error {
	lockedUntilStr := lockedUntil.UTC().Format(time.RFC1123)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8d7da; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .detail { background-color: #f8f9fa; padding: 10px; border-left: 4px solid #dc3545; margin: 10px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Account Locked</h1>
        </div>
        <div class="content">
            <p>An account was automatically locked after too many failed login attempts.</p>
            <div class="detail">
                <strong>Account:</strong> %s<br>
                <strong>Failed attempts:</strong> %d<br>
                <strong>Locked until:</strong> %s
            </div>
            <p>The lock clears automatically at the time shown, or an administrator can release it early from the admin panel.</p>
        </div>
        <div class="footer">
            <p>This is an automated security alert. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, email, failedAttempts, lockedUntilStr)

	textBody := fmt.Sprintf(`Account Locked

An account was automatically locked after too many failed login attempts.

Account:         %s
Failed attempts: %d
Locked until:    %s

The lock clears automatically at the time shown, or an administrator can release it early from the admin panel.

This is an automated security alert. Please do not reply to this email.
`, email, failedAttempts, lockedUntilStr)

	return s.send(ctx, "Security alert: account locked", htmlBody, textBody, email)
}

// SendSuspiciousActivityAlert notifies operations about a login that
// tripped the suspicion heuristics
func (s *AWSSESAlertService) SendSuspiciousActivityAlert(ctx context.Context, email, ipAddress string, factors []string) error {
	factorItems := make([]string, 0, len(factors))
	for _, factor := range factors {
		factorItems = append(factorItems, fmt.Sprintf("<li>%s</li>", factor))
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #fff3cd; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .detail { background-color: #f8f9fa; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Suspicious Login</h1>
        </div>
        <div class="content">
            <p>A successful login matched one or more suspicion heuristics.</p>
            <div class="detail">
                <strong>Account:</strong> %s<br>
                <strong>IP address:</strong> %s
            </div>
            <p><strong>Factors:</strong></p>
            <ul>%s</ul>
            <p>No action was taken automatically. Review the account's recent activity if the pattern looks unfamiliar.</p>
        </div>
        <div class="footer">
            <p>This is an automated security alert. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, email, ipAddress, strings.Join(factorItems, ""))

	textBody := fmt.Sprintf(`Suspicious Login

A successful login matched one or more suspicion heuristics.

Account:    %s
IP address: %s
Factors:    %s

No action was taken automatically. Review the account's recent activity if the pattern looks unfamiliar.

This is an automated security alert. Please do not reply to this email.
`, email, ipAddress, strings.Join(factors, ", "))

	return s.send(ctx, "Security alert: suspicious login", htmlBody, textBody, email)
}

func (s *AWSSESAlertService) send(ctx context.Context, subject, htmlBody, textBody, subjectEmail string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send security alert via SES",
			slog.String("subject", subject),
			slog.String("email", pkglogger.SanitizedEmail(subjectEmail)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("security alert sent",
		slog.String("subject", subject),
		slog.String("email", pkglogger.SanitizedEmail(subjectEmail)),
		slog.String("message_id", *result.MessageId))

	return nil
}

// NoopAlertService satisfies AlertSender when outbound email is
// disabled. Incidents still reach the security log.
type NoopAlertService struct {
	logger *slog.Logger
}

// NewNoopAlertService creates an alert service that only logs
func NewNoopAlertService(logger *slog.Logger) *NoopAlertService {
	return &NoopAlertService{logger: logger}
}

func (s *NoopAlertService) SendLockoutAlert(ctx context.Context, email string, failedAttempts int, lockedUntil time.Time) error {
	s.logger.Debug("email disabled, skipping lockout alert",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Int("failed_attempts", failedAttempts))
	return nil
}

func (s *NoopAlertService) SendSuspiciousActivityAlert(ctx context.Context, email, ipAddress string, factors []string) error {
	s.logger.Debug("email disabled, skipping suspicious activity alert",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Int("factors", len(factors)))
	return nil
}
