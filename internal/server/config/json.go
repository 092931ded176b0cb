package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/soultalk/internal/flagx"
	"github.com/dmitrijs2005/soultalk/internal/timex"
)

// JsonRateLimit mirrors RateLimit for JSON files.
type JsonRateLimit struct {
	Attempts int            `json:"attempts"`
	Window   timex.Duration `json:"window"`
}

// JsonConfig is the on-disk shape of the server config file. Durations
// accept either "15m" style strings or integer nanoseconds.
//
// Only keys present with a non-zero value override the running Config,
// so a file may carry just the settings it cares about.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	DatabaseDSN         string         `json:"database_dsn"`
	HealthCheckInterval timex.Duration `json:"health_check_interval"`

	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	OTPLength                    int            `json:"otp_length"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`

	PublicBaseURL  string   `json:"public_base_url"`
	AppResetURL    string   `json:"app_reset_url"`
	AllowedOrigins []string `json:"allowed_origins"`

	GoogleClientIDs   []string `json:"google_client_ids"`
	FacebookAppID     string   `json:"facebook_app_id"`
	FacebookAppSecret string   `json:"facebook_app_secret"`

	MailTransport string `json:"mail_transport"`
	MailFrom      string `json:"mail_from"`
	MailQueueSize int    `json:"mail_queue_size"`
	MailWorkers   int    `json:"mail_workers"`
	SMTPHost      string `json:"smtp_host"`
	SMTPPort      int    `json:"smtp_port"`
	SMTPUsername  string `json:"smtp_username"`
	SMTPPassword  string `json:"smtp_password"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	RedisURL           string        `json:"redis_url"`
	LoginLimit         JsonRateLimit `json:"login_limit"`
	VerifyEmailLimit   JsonRateLimit `json:"verify_email_limit"`
	ResendLimit        JsonRateLimit `json:"resend_limit"`
	PasswordResetLimit JsonRateLimit `json:"password_reset_limit"`

	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
	ServiceName  string `json:"service_name"`
	OTELEndpoint string `json:"otel_endpoint"`
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func overlaySlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func (l JsonRateLimit) apply(dst *RateLimit) {
	overlay(&dst.Attempts, l.Attempts)
	overlay(&dst.Window, l.Window.Duration)
}

// parseJson loads the file named by -c/-config, if any, over config.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.HealthCheckInterval, c.HealthCheckInterval.Duration)

	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	overlay(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	overlay(&config.OTPLength, c.OTPLength)
	overlay(&config.OTPValidityDuration, c.OTPValidityDuration.Duration)
	overlay(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration.Duration)
	overlay(&config.BcryptCost, c.BcryptCost)

	overlay(&config.PublicBaseURL, c.PublicBaseURL)
	overlay(&config.AppResetURL, c.AppResetURL)
	overlaySlice(&config.AllowedOrigins, c.AllowedOrigins)

	overlaySlice(&config.GoogleClientIDs, c.GoogleClientIDs)
	overlay(&config.FacebookAppID, c.FacebookAppID)
	overlay(&config.FacebookAppSecret, c.FacebookAppSecret)

	overlay(&config.MailTransport, c.MailTransport)
	overlay(&config.MailFrom, c.MailFrom)
	overlay(&config.MailQueueSize, c.MailQueueSize)
	overlay(&config.MailWorkers, c.MailWorkers)
	overlay(&config.SMTPHost, c.SMTPHost)
	overlay(&config.SMTPPort, c.SMTPPort)
	overlay(&config.SMTPUsername, c.SMTPUsername)
	overlay(&config.SMTPPassword, c.SMTPPassword)

	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	overlay(&config.RedisURL, c.RedisURL)
	c.LoginLimit.apply(&config.LoginLimit)
	c.VerifyEmailLimit.apply(&config.VerifyEmailLimit)
	c.ResendLimit.apply(&config.ResendLimit)
	c.PasswordResetLimit.apply(&config.PasswordResetLimit)

	overlay(&config.LogLevel, c.LogLevel)
	overlay(&config.LogFormat, c.LogFormat)
	overlay(&config.ServiceName, c.ServiceName)
	overlay(&config.OTELEndpoint, c.OTELEndpoint)
}
