package constants

// Default dispatch configuration values
const (
	DefaultDispatchIntervalMin   = 5
	DefaultRetrySweepIntervalMin = 10
	DefaultDispatchBatchSize     = 25
	DefaultMaxSendRetries        = 4
	DefaultStalenessSkipAlert    = 20
	DefaultServerPort            = 8084
)

// BackoffLadderMinutes is the wall-clock retry schedule for failed sends,
// indexed by retry count and clamped to the last rung.
var BackoffLadderMinutes = []int{5, 15, 60, 240, 1440}

// Default per-channel rate limits. The sharp differences reflect how
// aggressively each platform polices automated behavior.
const (
	DefaultEmailPerHour     = 50
	DefaultEmailPerDay      = 500
	DefaultEmailMinDelaySec = 30

	DefaultWhatsAppPerHour     = 20
	DefaultWhatsAppPerDay      = 150
	DefaultWhatsAppMinDelaySec = 180

	DefaultTelegramPerHour     = 30
	DefaultTelegramPerDay      = 200
	DefaultTelegramMinDelaySec = 120

	DefaultLinkedInPerHour     = 10
	DefaultLinkedInPerDay      = 50
	DefaultLinkedInMinDelaySec = 300

	DefaultFacebookPerHour     = 10
	DefaultFacebookPerDay      = 50
	DefaultFacebookMinDelaySec = 300
)

// RateWindowHorizonHours bounds how long send-window entries are retained
// for rate accounting.
const RateWindowHorizonHours = 24

// Default timeout and retry values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultAdapterTimeoutSec     = 30
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
)

// Circuit breaker settings for adapter calls
const (
	CBMaxFailures      = 5
	CBTimeoutSec       = 60
	CBHalfOpenMaxCalls = 3
)

// Encryption parameters for at-rest column encryption
const (
	EncryptionSalt       = "sendgate-column-encryption-v1"
	EncryptionLookupSalt = "sendgate-lookup-v1"
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
	EncryptionIterations = 100000
)
