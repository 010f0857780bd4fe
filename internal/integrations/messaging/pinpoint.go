package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"

	"cstore-agent/internal/domain"
)

const charset = "UTF-8"

// pinpointAPI is the minimal Pinpoint interface required by EmailSender.
// *pinpoint.Client from aws-sdk-go-v2 satisfies this interface.
type pinpointAPI interface {
	SendMessages(ctx context.Context, in *pinpoint.SendMessagesInput, optFns ...func(*pinpoint.Options)) (*pinpoint.SendMessagesOutput, error)
}

// EmailSender delivers transactional email through a Pinpoint application.
type EmailSender struct {
	api   pinpointAPI
	appID string
}

func NewEmailSender(api pinpointAPI, appID string) (*EmailSender, error) {
	if api == nil {
		return nil, errors.New("messaging: api must not be nil")
	}
	if strings.TrimSpace(appID) == "" {
		return nil, errors.New("messaging: application id must not be empty")
	}
	return &EmailSender{api: api, appID: appID}, nil
}

func (s *EmailSender) SendEmail(ctx context.Context, msg domain.Email) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("messaging: recipient is required")
	}

	out, err := s.api.SendMessages(ctx, &pinpoint.SendMessagesInput{
		ApplicationId: aws.String(s.appID),
		MessageRequest: &types.MessageRequest{
			Addresses: map[string]types.AddressConfiguration{
				msg.To: {ChannelType: types.ChannelTypeEmail},
			},
			MessageConfiguration: &types.DirectMessageConfiguration{
				EmailMessage: &types.EmailMessage{
					SimpleEmail: &types.SimpleEmail{
						Subject:  part(msg.Subject),
						HtmlPart: part(msg.HTML),
						TextPart: part(msg.Text),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("messaging: send email to %q: %w", msg.To, err)
	}

	if out != nil && out.MessageResponse != nil {
		if res, ok := out.MessageResponse.Result[msg.To]; ok {
			slog.Info("email sent", "to", msg.To, "status", res.DeliveryStatus, "statusCode", aws.ToInt32(res.StatusCode))
			return nil
		}
	}
	slog.Info("email sent", "to", msg.To)
	return nil
}

func part(data string) *types.SimpleEmailPart {
	return &types.SimpleEmailPart{Charset: aws.String(charset), Data: aws.String(data)}
}
