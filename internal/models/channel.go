package models

import (
	"fmt"
	"time"

	"sendgate/internal/constants"
)

// Channel identifies an outbound communication medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
	ChannelLinkedIn Channel = "linkedin"
	ChannelFacebook Channel = "facebook"
)

// AllChannels lists every supported channel in a stable order.
var AllChannels = []Channel{
	ChannelEmail,
	ChannelWhatsApp,
	ChannelTelegram,
	ChannelLinkedIn,
	ChannelFacebook,
}

// RateLimitConfig bounds outbound volume on a single channel.
type RateLimitConfig struct {
	PerHour  int           `json:"per_hour"`
	PerDay   int           `json:"per_day"`
	MinDelay time.Duration `json:"-"`
}

// ChannelCapability describes what the platform behind a channel allows.
// Channels without a programmatic send API (linkedin, facebook) only get a
// compose surface opened for them; a human still has to click send.
type ChannelCapability struct {
	SupportsAutoSend bool
	UsesPhoneNumbers bool
	RateLimit        RateLimitConfig
}

var channelCapabilities = map[Channel]ChannelCapability{
	ChannelEmail: {
		SupportsAutoSend: true,
		RateLimit: RateLimitConfig{
			PerHour:  constants.DefaultEmailPerHour,
			PerDay:   constants.DefaultEmailPerDay,
			MinDelay: constants.DefaultEmailMinDelaySec * time.Second,
		},
	},
	ChannelWhatsApp: {
		SupportsAutoSend: true,
		UsesPhoneNumbers: true,
		RateLimit: RateLimitConfig{
			PerHour:  constants.DefaultWhatsAppPerHour,
			PerDay:   constants.DefaultWhatsAppPerDay,
			MinDelay: constants.DefaultWhatsAppMinDelaySec * time.Second,
		},
	},
	ChannelTelegram: {
		SupportsAutoSend: true,
		RateLimit: RateLimitConfig{
			PerHour:  constants.DefaultTelegramPerHour,
			PerDay:   constants.DefaultTelegramPerDay,
			MinDelay: constants.DefaultTelegramMinDelaySec * time.Second,
		},
	},
	ChannelLinkedIn: {
		SupportsAutoSend: false,
		RateLimit: RateLimitConfig{
			PerHour:  constants.DefaultLinkedInPerHour,
			PerDay:   constants.DefaultLinkedInPerDay,
			MinDelay: constants.DefaultLinkedInMinDelaySec * time.Second,
		},
	},
	ChannelFacebook: {
		SupportsAutoSend: false,
		RateLimit: RateLimitConfig{
			PerHour:  constants.DefaultFacebookPerHour,
			PerDay:   constants.DefaultFacebookPerDay,
			MinDelay: constants.DefaultFacebookMinDelaySec * time.Second,
		},
	},
}

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	_, ok := channelCapabilities[c]
	return ok
}

// Capability returns the capability record for the channel.
func (c Channel) Capability() (ChannelCapability, error) {
	cap, ok := channelCapabilities[c]
	if !ok {
		return ChannelCapability{}, fmt.Errorf("unknown channel: %q", c)
	}
	return cap, nil
}

// SupportsAutoSend reports whether the channel can deliver without a human
// completing the send manually.
func (c Channel) SupportsAutoSend() bool {
	cap, ok := channelCapabilities[c]
	return ok && cap.SupportsAutoSend
}

// UsesPhoneNumbers reports whether the channel addresses recipients by phone
// number rather than an email address or platform handle.
func (c Channel) UsesPhoneNumbers() bool {
	cap, ok := channelCapabilities[c]
	return ok && cap.UsesPhoneNumbers
}

// DefaultRateLimits returns a fresh copy of the per-channel rate limit
// defaults, safe for the caller to modify.
func DefaultRateLimits() map[Channel]RateLimitConfig {
	limits := make(map[Channel]RateLimitConfig, len(channelCapabilities))
	for ch, cap := range channelCapabilities {
		limits[ch] = cap.RateLimit
	}
	return limits
}
