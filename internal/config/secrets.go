package config

const redacted = "***"

// Redacted returns a copy of cfg safe to log: credentials are masked and
// slices are copied so the original cannot be mutated through it.
func Redacted(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.Venue.MT5.APIToken)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Venue.MT5.Symbols != nil {
		out.Venue.MT5.Symbols = append([]string(nil), cfg.Venue.MT5.Symbols...)
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
