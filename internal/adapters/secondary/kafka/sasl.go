package kafka

import "github.com/IBM/sarama"

// ApplySecurity настраивает SASL/TLS по конфигу
func ApplySecurity(config *sarama.Config, cfg *Config) {
	if cfg.SecurityProtocol != "SASL_SSL" && cfg.SecurityProtocol != "SASL_PLAINTEXT" {
		return
	}

	config.Net.SASL.Enable = true
	config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	if cfg.SASLMechanism == "SCRAM-SHA-256" {
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
	}
	config.Net.SASL.User = cfg.SASLUsername
	config.Net.SASL.Password = cfg.SASLPassword

	// TLS только для SASL_SSL
	if cfg.SecurityProtocol == "SASL_SSL" {
		config.Net.TLS.Enable = true
	}
}
