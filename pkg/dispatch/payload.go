package dispatch

import (
	"encoding/json"
	"fmt"
)

// Payload is the channel-specific content of a notification job. Concrete
// payload types carry exactly the fields their channel needs.
type Payload interface {
	// Channel returns the delivery channel this payload targets.
	Channel() Channel
	// Validate checks the payload for structural completeness. It does not
	// validate target formats; adapters own that.
	Validate() error
}

// EmailPayload is the content of an email notification.
type EmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}

func (p EmailPayload) Channel() Channel { return ChannelEmail }

func (p EmailPayload) Validate() error {
	if p.To == "" {
		return fmt.Errorf("%w: email payload missing recipient", ErrInvalidPayload)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: email payload missing subject", ErrInvalidPayload)
	}
	return nil
}

// SMSPayload is the content of an SMS notification.
type SMSPayload struct {
	PhoneNumber string `json:"phone_number"`
	Text        string `json:"text"`
}

func (p SMSPayload) Channel() Channel { return ChannelSMS }

func (p SMSPayload) Validate() error {
	if p.PhoneNumber == "" {
		return fmt.Errorf("%w: sms payload missing phone number", ErrInvalidPayload)
	}
	if p.Text == "" {
		return fmt.Errorf("%w: sms payload missing text", ErrInvalidPayload)
	}
	return nil
}

// PushPayload is the content of a mobile push notification.
type PushPayload struct {
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

func (p PushPayload) Channel() Channel { return ChannelPush }

func (p PushPayload) Validate() error {
	if p.DeviceToken == "" {
		return fmt.Errorf("%w: push payload missing device token", ErrInvalidPayload)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: push payload missing title", ErrInvalidPayload)
	}
	return nil
}

// InAppPayload is the content of an in-app notification delivered over a
// live connection.
type InAppPayload struct {
	UserID  string            `json:"user_id"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

func (p InAppPayload) Channel() Channel { return ChannelInApp }

func (p InAppPayload) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: in-app payload missing user id", ErrInvalidPayload)
	}
	if p.Message == "" {
		return fmt.Errorf("%w: in-app payload missing message", ErrInvalidPayload)
	}
	return nil
}

// payloadEnvelope tags the serialized payload with its channel so the stored
// form round-trips back to the right concrete type.
type payloadEnvelope struct {
	Channel Channel         `json:"channel"`
	Content json.RawMessage `json:"content"`
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrInvalidPayload
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	content, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return json.Marshal(payloadEnvelope{Channel: p.Channel(), Content: content})
}

// DecodePayload deserializes a stored payload back into its concrete type.
func DecodePayload(data []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var payload Payload
	switch env.Channel {
	case ChannelEmail:
		var p EmailPayload
		if err := json.Unmarshal(env.Content, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		payload = p
	case ChannelSMS:
		var p SMSPayload
		if err := json.Unmarshal(env.Content, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		payload = p
	case ChannelPush:
		var p PushPayload
		if err := json.Unmarshal(env.Content, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		payload = p
	case ChannelInApp:
		var p InAppPayload
		if err := json.Unmarshal(env.Content, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		payload = p
	default:
		return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidPayload, env.Channel)
	}

	return payload, nil
}
