package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaPollInterval = 500 * time.Millisecond
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDedupWindow = "changeprop:retrywindow:"
	CacheKeyPrefixRuleReload  = "changeprop:reload:"
)

const (
	DefaultRetryDelayMs = 60000
	DefaultRetryLimit   = 2
	DefaultRetryFactor  = 6
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultDatacenter = "datacenter1"
)

const (
	MaxTriggeredChain = 32
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)
