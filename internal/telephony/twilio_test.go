package telephony

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialWithoutCredentials(t *testing.T) {
	d := NewTwilioDialer(Config{FromNumber: "+15550000000"})
	_, err := d.Dial(context.Background(), CallRequest{To: "+15551112222"})
	assert.ErrorIs(t, err, ErrCredentialsNotSet)
}

func TestDialWithoutNumbers(t *testing.T) {
	d := NewTwilioDialer(Config{AccountSID: "AC123", AuthToken: "secret"})

	_, err := d.Dial(context.Background(), CallRequest{To: "+15551112222"})
	assert.ErrorIs(t, err, ErrNumbersNotSet)

	d = NewTwilioDialer(Config{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550000000"})
	_, err = d.Dial(context.Background(), CallRequest{To: "  "})
	assert.ErrorIs(t, err, ErrNumbersNotSet)
}

func TestDialCanceledContext(t *testing.T) {
	d := NewTwilioDialer(Config{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550000000"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, CallRequest{To: "+15551112222"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadyReportsCredentialsBeforeNumbers(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "nothing configured", cfg: Config{}, want: ErrCredentialsNotSet},
		{name: "numbers only", cfg: Config{FromNumber: "+15550000000"}, want: ErrCredentialsNotSet},
		{name: "credentials only", cfg: Config{AccountSID: "AC123", AuthToken: "secret"}, want: ErrNumbersNotSet},
		{name: "complete", cfg: Config{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTwilioDialer(tt.cfg).Ready()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
