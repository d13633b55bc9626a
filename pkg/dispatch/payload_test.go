package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

func TestPayloadValidation(t *testing.T) {
	t.Parallel()

	t.Run("complete payloads pass", func(t *testing.T) {
		t.Parallel()

		payloads := []dispatch.Payload{
			dispatch.EmailPayload{To: "rider@example.com", Subject: "hi", BodyHTML: "<p>hi</p>"},
			dispatch.SMSPayload{PhoneNumber: "+15551234567", Text: "hi"},
			dispatch.PushPayload{DeviceToken: "tok", Title: "hi"},
			dispatch.InAppPayload{UserID: "user-1", Message: "hi"},
		}
		for _, p := range payloads {
			assert.NoError(t, p.Validate())
		}
	})

	t.Run("missing target fields fail", func(t *testing.T) {
		t.Parallel()

		assert.ErrorIs(t, dispatch.EmailPayload{Subject: "hi"}.Validate(), dispatch.ErrInvalidPayload)
		assert.ErrorIs(t, dispatch.SMSPayload{Text: "hi"}.Validate(), dispatch.ErrInvalidPayload)
		assert.ErrorIs(t, dispatch.PushPayload{Title: "hi"}.Validate(), dispatch.ErrInvalidPayload)
		assert.ErrorIs(t, dispatch.InAppPayload{Title: "hi"}.Validate(), dispatch.ErrInvalidPayload)
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("push payload keeps data map", func(t *testing.T) {
		t.Parallel()

		original := dispatch.PushPayload{
			DeviceToken: "device-token-1",
			Title:       "Driver arriving",
			Body:        "2 minutes away",
			Data:        map[string]string{"ride_id": "ride-42"},
		}

		encoded, err := dispatch.EncodePayload(original)
		require.NoError(t, err)

		decoded, err := dispatch.DecodePayload(encoded)
		require.NoError(t, err)

		push, ok := decoded.(dispatch.PushPayload)
		require.True(t, ok, "expected PushPayload, got %T", decoded)
		assert.Equal(t, original, push)
	})

	t.Run("decoded payload reports its channel", func(t *testing.T) {
		t.Parallel()

		encoded, err := dispatch.EncodePayload(dispatch.SMSPayload{PhoneNumber: "+15551234567", Text: "code 1234"})
		require.NoError(t, err)

		decoded, err := dispatch.DecodePayload(encoded)
		require.NoError(t, err)
		assert.Equal(t, dispatch.ChannelSMS, decoded.Channel())
	})

	t.Run("encode rejects invalid payload", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.EncodePayload(dispatch.EmailPayload{To: "rider@example.com"})
		assert.ErrorIs(t, err, dispatch.ErrInvalidPayload)
	})

	t.Run("decode rejects unknown channel tag", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.DecodePayload([]byte(`{"channel":"fax","content":{}}`))
		assert.ErrorIs(t, err, dispatch.ErrInvalidPayload)
	})

	t.Run("decode rejects garbage", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.DecodePayload([]byte("not json"))
		assert.ErrorIs(t, err, dispatch.ErrInvalidPayload)
	})
}
