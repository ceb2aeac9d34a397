package communication

import (
	"context"
	"fmt"
	"strings"

	"axiapac.com/presence/presence/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Mailer e-mails supervisors when a shift is marked absent. Other topics are
// ignored.
type Mailer struct {
	client SESAPI
	from   string
	to     []string
}

func NewMailer(client SESAPI, from string, to []string) *Mailer {
	return &Mailer{client: client, from: from, to: to}
}

func ConnectMailer(ctx context.Context, from string, to []string) (*Mailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewMailer(ses.NewFromConfig(cfg), from, to), nil
}

func (m *Mailer) Publish(ctx context.Context, topic string, payload any) error {
	if topic != core.TopicShiftAbsent || len(m.to) == 0 {
		return nil
	}
	ev, ok := payload.(core.ShiftEvent)
	if !ok {
		return nil
	}

	subject, body := absenceEmail(ev)
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.from),
		Destination: &types.Destination{ToAddresses: m.to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send absence email for shift %s: %w", ev.ShiftID, err)
	}
	return nil
}

func absenceEmail(ev core.ShiftEvent) (string, string) {
	subject := fmt.Sprintf("Shift marked absent: employee %s", ev.EmployeeID)
	if ev.ShiftDate != "" {
		subject += " on " + ev.ShiftDate
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Shift: %s\r\n", ev.ShiftID)
	fmt.Fprintf(&b, "Employee: %s\r\n", ev.EmployeeID)
	fmt.Fprintf(&b, "Reason: %s\r\n", ev.Reason)
	fmt.Fprintf(&b, "At: %s\r\n\r\n", ev.At.Format("2006-01-02 15:04"))
	if ev.Message.English != "" {
		b.WriteString(ev.Message.English + "\r\n")
	}
	if ev.Message.Indonesian != "" {
		b.WriteString(ev.Message.Indonesian + "\r\n")
	}
	return subject, b.String()
}
