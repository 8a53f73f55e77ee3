package whatsapp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// AccountProvider yields the gateway account id to use for a request.
// Account selection is runtime configuration; the dashboard can repoint it
// between the primary and backup lines without a restart.
type AccountProvider func() string

// Client talks to the WhatsApp HTTP gateway.
type Client struct {
	httpClient *resty.Client
	secret     string
	account    AccountProvider
}

// NewClient creates a gateway client. baseURL and secret are mandatory;
// account yields the active gateway account id per call.
func NewClient(baseURL, secret string, account AccountProvider) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whatsapp baseURL cannot be empty")
	}
	if secret == "" {
		return nil, fmt.Errorf("whatsapp secret cannot be empty")
	}
	if account == nil {
		return nil, fmt.Errorf("whatsapp account provider cannot be nil")
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)

	log.Info().Str("baseURL", baseURL).Msg("WhatsApp gateway client configured")

	return &Client{httpClient: httpClient, secret: secret, account: account}, nil
}

// SendMessage delivers a text message to a phone number and returns the
// gateway message id.
func (c *Client) SendMessage(phone, text string) (int64, error) {
	var result sendResponse
	resp, err := c.httpClient.R().
		SetFormData(map[string]string{
			"secret":    c.secret,
			"account":   c.account(),
			"recipient": phone,
			"type":      "text",
			"message":   text,
		}).
		SetResult(&result).
		Post("/send/whatsapp")
	if err != nil {
		return 0, fmt.Errorf("whatsapp send request failed: %w", err)
	}
	if resp.IsError() || result.Status != 200 {
		log.Error().Str("phone", phone).Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("WhatsApp gateway: send returned an error")
		return 0, fmt.Errorf("whatsapp send error: status %s, body: %s", resp.Status(), resp.String())
	}
	log.Info().Int64("messageID", result.Data.MessageID).Str("phone", phone).Msg("WhatsApp message sent")
	return result.Data.MessageID, nil
}

// FetchReceived returns up to limit recent inbound messages, newest first.
func (c *Client) FetchReceived(limit int) ([]ReceivedMessage, error) {
	var result receivedResponse
	resp, err := c.httpClient.R().
		SetQueryParams(map[string]string{
			"secret":  c.secret,
			"account": c.account(),
			"limit":   strconv.Itoa(limit),
		}).
		SetResult(&result).
		Get("/get/wa.received")
	if err != nil {
		return nil, fmt.Errorf("whatsapp fetch received request failed: %w", err)
	}
	if resp.IsError() || result.Status != 200 {
		log.Error().Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("WhatsApp gateway: fetch received returned an error")
		return nil, fmt.Errorf("whatsapp fetch received error: status %s, body: %s", resp.Status(), resp.String())
	}
	return result.Data, nil
}

// ValidatePhone asks the gateway whether the number has a WhatsApp account.
func (c *Client) ValidatePhone(phone string) (bool, error) {
	var result validateResponse
	resp, err := c.httpClient.R().
		SetQueryParams(map[string]string{
			"secret": c.secret,
			"phone":  phone,
		}).
		SetResult(&result).
		Get("/validate/whatsapp")
	if err != nil {
		return false, fmt.Errorf("whatsapp validate request failed: %w", err)
	}
	if resp.IsError() || result.Status != 200 {
		return false, fmt.Errorf("whatsapp validate error: status %s, body: %s", resp.Status(), resp.String())
	}
	return result.Data.Valid, nil
}

// Subscription fetches the plan counters, including remaining WhatsApp sends.
func (c *Client) Subscription() (*Subscription, error) {
	var result subscriptionResponse
	resp, err := c.httpClient.R().
		SetQueryParam("secret", c.secret).
		SetResult(&result).
		Get("/get/subscription")
	if err != nil {
		return nil, fmt.Errorf("whatsapp subscription request failed: %w", err)
	}
	if resp.IsError() || result.Status != 200 {
		log.Error().Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("WhatsApp gateway: subscription returned an error")
		return nil, fmt.Errorf("whatsapp subscription error: status %s, body: %s", resp.Status(), resp.String())
	}
	return &result.Data.Usage, nil
}

// Remaining returns how many WhatsApp sends the subscription still allows.
func (s *Subscription) Remaining() int {
	return s.WhatsAppSend.Limit - s.WhatsAppSend.Used
}
