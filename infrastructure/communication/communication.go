package communication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"axiapac.com/presence/presence/core"
	"github.com/slack-go/slack"
)

type Slack struct {
	client  *slack.Client
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string

	// for tests against a local server
	APIURL string
}

func NewSlack(token string, options SlackOption) *Slack {
	var opts []slack.Option
	if options.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(options.APIURL))
	}
	client := slack.New(token, opts...)
	return &Slack{client: client, options: options}
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.InfoChannelID, message)
}

func (s *Slack) Error(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.ErrorChannelID, message)
}

// Publish posts attendance problems to the error channel and everything else
// to the info channel.
func (s *Slack) Publish(ctx context.Context, topic string, payload any) error {
	text, err := slackText(topic, payload)
	if err != nil {
		return err
	}
	if alarming(topic) {
		return s.Error(ctx, text)
	}
	return s.Info(ctx, text)
}

func alarming(topic string) bool {
	switch topic {
	case core.TopicShiftAbsent, core.TopicLocationOutOfRange, core.TopicCheckFailed:
		return true
	}
	return false
}

func slackText(topic string, payload any) (string, error) {
	if ev, ok := payload.(core.ShiftEvent); ok {
		var b strings.Builder
		fmt.Fprintf(&b, "*%s* shift `%s` employee `%s` is %s", topic, ev.ShiftID, ev.EmployeeID, ev.Status)
		if ev.Message.English != "" {
			fmt.Fprintf(&b, "\n%s", ev.Message.English)
		}
		return b.String(), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return fmt.Sprintf("*%s*\n```%s```", topic, raw), nil
}
