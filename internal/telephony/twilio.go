// Package telephony places outbound escalation calls through Twilio.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	ErrCredentialsNotSet = errors.New("twilio credentials are not set")
	ErrNumbersNotSet     = errors.New("phone numbers are not set")
)

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	TwiMLURL   string
}

// CallRequest describes one outbound call; To is the hotline being dialed.
type CallRequest struct {
	To string
}

type TwilioDialer struct {
	cfg    Config
	client *twilio.RestClient
}

func NewTwilioDialer(cfg Config) *TwilioDialer {
	d := &TwilioDialer{cfg: cfg}
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		d.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
	}
	return d
}

// Ready checks credentials first, then the caller number, so a fully
// unconfigured deployment reports the credentials.
func (d *TwilioDialer) Ready() error {
	if d.client == nil {
		return ErrCredentialsNotSet
	}
	if strings.TrimSpace(d.cfg.FromNumber) == "" {
		return ErrNumbersNotSet
	}
	return nil
}

// Dial starts the call and returns the call SID. The Twilio SDK does not accept a
// context, so ctx is only checked before the request goes out.
func (d *TwilioDialer) Dial(ctx context.Context, req CallRequest) (string, error) {
	if err := d.Ready(); err != nil {
		return "", err
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return "", ErrNumbersNotSet
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.cfg.FromNumber)
	params.SetUrl(d.cfg.TwiMLURL)

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call failed: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("twilio create call returned no sid")
	}
	return *resp.Sid, nil
}
