package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioCaller places alert voice calls through the Twilio REST API.
type TwilioCaller struct {
	client *twilio.RestClient
	from   string
}

var _ VoiceCaller = (*TwilioCaller)(nil)

// NewTwilioCaller constructs a TwilioCaller.
func NewTwilioCaller(accountSID, authToken, from string) *TwilioCaller {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioCaller{client: client, from: from}
}

// Call places one voice call per number. Failures are collected per number so
// one unreachable number does not stop the rest; the successfully created
// call SIDs are returned alongside the joined error.
func (t *TwilioCaller) Call(_ context.Context, numbers []string, message string) ([]string, error) {
	twiml := fmt.Sprintf("<Response><Say>%s</Say><Hangup/></Response>", html.EscapeString(message))

	var (
		callIDs []string
		errs    []error
	)
	for _, number := range numbers {
		params := &twilioapi.CreateCallParams{}
		params.SetTo(number)
		params.SetFrom(t.from)
		params.SetTwiml(twiml)

		call, err := t.client.Api.CreateCall(params)
		if err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", number, err))
			continue
		}
		if call.Sid != nil {
			callIDs = append(callIDs, *call.Sid)
		}
	}
	return callIDs, errors.Join(errs...)
}
