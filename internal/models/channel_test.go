package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_Valid(t *testing.T) {
	for _, ch := range AllChannels {
		assert.True(t, ch.Valid(), "channel %s", ch)
	}
	assert.False(t, Channel("sms").Valid())
	assert.False(t, Channel("").Valid())
}

func TestChannel_SupportsAutoSend(t *testing.T) {
	assert.True(t, ChannelEmail.SupportsAutoSend())
	assert.True(t, ChannelWhatsApp.SupportsAutoSend())
	assert.True(t, ChannelTelegram.SupportsAutoSend())
	assert.False(t, ChannelLinkedIn.SupportsAutoSend())
	assert.False(t, ChannelFacebook.SupportsAutoSend())
	assert.False(t, Channel("sms").SupportsAutoSend())
}

func TestChannel_UsesPhoneNumbers(t *testing.T) {
	assert.True(t, ChannelWhatsApp.UsesPhoneNumbers())
	assert.False(t, ChannelEmail.UsesPhoneNumbers())
	assert.False(t, ChannelTelegram.UsesPhoneNumbers())
	assert.False(t, ChannelLinkedIn.UsesPhoneNumbers())
	assert.False(t, ChannelFacebook.UsesPhoneNumbers())
	assert.False(t, Channel("sms").UsesPhoneNumbers())
}

func TestChannel_Capability(t *testing.T) {
	cap, err := ChannelEmail.Capability()
	require.NoError(t, err)
	assert.Equal(t, 50, cap.RateLimit.PerHour)
	assert.Equal(t, 500, cap.RateLimit.PerDay)
	assert.Equal(t, 30*time.Second, cap.RateLimit.MinDelay)

	_, err = Channel("pager").Capability()
	assert.Error(t, err)
}

func TestDefaultRateLimits_ReturnsCopy(t *testing.T) {
	limits := DefaultRateLimits()
	require.Len(t, limits, len(AllChannels))

	limits[ChannelEmail] = RateLimitConfig{PerHour: 1, PerDay: 1}
	fresh := DefaultRateLimits()
	assert.Equal(t, 50, fresh[ChannelEmail].PerHour, "mutating a copy must not change defaults")
}
