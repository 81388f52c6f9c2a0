package broker

import (
	"changeprop/internal/config"
	"changeprop/internal/logger"
	"changeprop/pkg/retry"
)

func NewProducer(cfg config.KafkaConfig, log logger.Logger) Producer {
	return NewGuaranteedProducer(cfg, log)
}

func NewConsumer(cfg config.KafkaConfig, log logger.Logger) Consumer {
	return NewKafkaConsumer(cfg, log)
}

// retryPolicyFrom turns the bus-level retry config (KafkaConfig.Retry)
// into the policy pkg/retry.Retry/RetryWithCallback expect, used for
// transient fetch/produce failures — never for handler or delivery
// outcomes, which have their own retry paths (rule-level retry
// envelopes, the dedup window).
func retryPolicyFrom(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}
}
