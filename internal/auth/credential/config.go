package credential

// Config holds the WebAuthn relying party settings.
type Config struct {
	RPID          string   `env:"BLINDLOG_WEBAUTHN_RP_ID"      envDefault:"localhost"`
	RPDisplayName string   `env:"BLINDLOG_WEBAUTHN_RP_NAME"    envDefault:"Blindlog"`
	RPOrigins     []string `env:"BLINDLOG_WEBAUTHN_RP_ORIGINS" envDefault:"http://localhost:8080"`
}
