// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package alert

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/monolith/internal/logging"
)

// maxSMSUnits is the gateway's hard cap on message length, measured in
// UTF-16 code units after Twilio's UCS-2 transcoding. Longer messages
// are truncated before the POST rather than rejected by the gateway.
const maxSMSUnits = 1600

// twilioAPIURL is the message-create endpoint; %s is the account SID.
const twilioAPIURL = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// TwilioConfig holds the gateway credentials and endpoints.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// TwilioBackend sends alert SMS through the Twilio REST API. Sends are
// wrapped in a circuit breaker so a gateway outage fails fast instead
// of stalling rule evaluation behind HTTP timeouts.
type TwilioBackend struct {
	cfg     TwilioConfig
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

// NewTwilioBackend builds a backend from cfg. Credentials are not
// verified until the first Send.
func NewTwilioBackend(cfg TwilioConfig) *TwilioBackend {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "twilio-sms",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SMS circuit breaker state change")
		},
	})

	return &TwilioBackend{cfg: cfg, client: client, breaker: breaker}
}

// Setup implements SmsBackend.
func (t *TwilioBackend) Setup() error {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" || t.cfg.From == "" || t.cfg.To == "" {
		return fmt.Errorf("twilio backend: incomplete configuration")
	}
	logging.Info().Str("from", t.cfg.From).Msg("Twilio SMS backend configured")
	return nil
}

// Teardown implements SmsBackend.
func (t *TwilioBackend) Teardown() {}

// Send posts message to the gateway. Messages over the gateway cap are
// truncated. Returns an error on HTTP failure, a non-2xx gateway
// response, or an open circuit.
func (t *TwilioBackend) Send(message string) error {
	resp, err := t.breaker.Execute(func() (*resty.Response, error) {
		r, err := t.client.R().
			SetFormData(map[string]string{
				"To":   t.cfg.To,
				"From": t.cfg.From,
				"Body": truncateUTF16(message, maxSMSUnits),
			}).
			Post(fmt.Sprintf(twilioAPIURL, t.cfg.AccountSID))
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("twilio responded %d: %s", r.StatusCode(), r.String())
		}
		return r, nil
	})
	if err != nil {
		return fmt.Errorf("sms send failed: %w", err)
	}
	logging.Debug().Int("status", resp.StatusCode()).Msg("SMS accepted by gateway")
	return nil
}

// truncateUTF16 cuts s to at most maxUnits UTF-16 code units without
// splitting a surrogate pair.
func truncateUTF16(s string, maxUnits int) string {
	units := 0
	for i, r := range s {
		n := 1
		if utf16.RuneLen(r) == 2 {
			n = 2
		}
		if units+n > maxUnits {
			return s[:i]
		}
		units += n
	}
	return s
}
