// Package config loads visasched settings from config.yaml and VISA_*
// environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/example/visa-rescheduler/internal/domain/appointment"
	"github.com/example/visa-rescheduler/internal/secret"
)

type Config struct {
	Account   AccountConfig   `mapstructure:"account"`
	Target    TargetConfig    `mapstructure:"target"`
	Embassy   string          `mapstructure:"embassy"`
	Timing    TimingConfig    `mapstructure:"timing"`
	Transport TransportConfig `mapstructure:"transport"`
	Markers   MarkersConfig   `mapstructure:"markers"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Web       WebConfig       `mapstructure:"web"`
	// SecretKey (base64, 32 bytes) opens "enc:" values.
	SecretKey string `mapstructure:"secret_key"`
}

type AccountConfig struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	ScheduleID string `mapstructure:"schedule_id"`
}

type TargetConfig struct {
	Start       string `mapstructure:"start"`
	End         string `mapstructure:"end"`
	DesiredTime string `mapstructure:"desired_time"`
}

type TimingConfig struct {
	StepDelay         time.Duration `mapstructure:"step_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	LoginWait         time.Duration `mapstructure:"login_wait"`
	LoginAttempts     int           `mapstructure:"login_attempts"`
	QueryAttempts     int           `mapstructure:"query_attempts"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RetryMin          time.Duration `mapstructure:"retry_min"`
	RetryMax          time.Duration `mapstructure:"retry_max"`
	WorkLimit         time.Duration `mapstructure:"work_limit"`
	WorkCooldown      time.Duration `mapstructure:"work_cooldown"`
	BanCooldown       time.Duration `mapstructure:"ban_cooldown"`
}

type TransportConfig struct {
	// Driver is "browser" (go-rod) or "http".
	Driver     string `mapstructure:"driver"`
	BaseURL    string `mapstructure:"base_url"`
	ControlURL string `mapstructure:"control_url"`
	Headless   bool   `mapstructure:"headless"`
	UserAgent  string `mapstructure:"user_agent"`
}

type MarkersConfig struct {
	Success []string `mapstructure:"success"`
}

type NotifyConfig struct {
	RatePerMinute float64        `mapstructure:"rate_per_minute"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
	SendGrid      SendGridConfig `mapstructure:"sendgrid"`
	Pushover      PushoverConfig `mapstructure:"pushover"`
	Pusher        PusherConfig   `mapstructure:"pusher"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type SendGridConfig struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
	To     string `mapstructure:"to"`
}

type PushoverConfig struct {
	Token string `mapstructure:"token"`
	User  string `mapstructure:"user"`
}

type PusherConfig struct {
	URL   string `mapstructure:"url"`
	User  string `mapstructure:"user"`
	Pass  string `mapstructure:"pass"`
	Email string `mapstructure:"email"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       string `mapstructure:"file"`
	JournalDir string `mapstructure:"journal_dir"`
}

type StoreConfig struct {
	// Driver is "", "sqlite" or "postgres". Empty disables attempt history.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type WebConfig struct {
	Addr           string `mapstructure:"addr"`
	OperatorHash   string `mapstructure:"operator_hash"`
	CookieHashKey  string `mapstructure:"cookie_hash_key"`
	CookieBlockKey string `mapstructure:"cookie_block_key"`
}

// DefaultSuccessMarkers are the confirmation phrases shown by the English and
// Spanish appointment pages.
var DefaultSuccessMarkers = []string{
	"Successfully Scheduled",
	"Usted ha programado exitosamente su cita de visa",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embassy", "es-co-bog")
	v.SetDefault("target.desired_time", appointment.DefaultDesiredTime)

	v.SetDefault("timing.step_delay", 500*time.Millisecond)
	v.SetDefault("timing.request_timeout", 10*time.Second)
	v.SetDefault("timing.login_wait", 30*time.Second)
	v.SetDefault("timing.login_attempts", 5)
	v.SetDefault("timing.query_attempts", 5)
	v.SetDefault("timing.requests_per_second", 1.0)
	v.SetDefault("timing.retry_min", 2*time.Minute)
	v.SetDefault("timing.retry_max", 5*time.Minute)
	v.SetDefault("timing.work_limit", 1*time.Hour)
	v.SetDefault("timing.work_cooldown", 30*time.Minute)
	v.SetDefault("timing.ban_cooldown", 5*time.Hour)

	v.SetDefault("transport.driver", "browser")
	v.SetDefault("transport.base_url", "https://ais.usvisa-info.com")
	v.SetDefault("transport.headless", true)

	v.SetDefault("markers.success", DefaultSuccessMarkers)
	v.SetDefault("notify.rate_per_minute", 20.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.journal_dir", "logs")

	v.SetDefault("web.addr", "")
}

// Load reads path (or ./config.yaml when empty) and applies VISA_* overrides,
// e.g. VISA_ACCOUNT_PASSWORD. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VISA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	// AutomaticEnv only affects Get; bind every key so Unmarshal sees overrides.
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.openSecrets(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeHook adds date handling to viper's defaults: YAML reads an unquoted
// 2024-06-01 as a timestamp, the target fields want the plain date.
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	timeToDateHook,
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

func timeToDateHook(from, to reflect.Type, data any) (any, error) {
	t, ok := data.(time.Time)
	if !ok || to.Kind() != reflect.String {
		return data, nil
	}
	return t.Format(appointment.DateLayout), nil
}

// secretKeys are usually supplied only through the environment.
var secretKeys = []string{
	"account.username",
	"account.password",
	"account.schedule_id",
	"notify.telegram.token",
	"notify.sendgrid.api_key",
	"notify.pushover.token",
	"notify.pusher.pass",
	"web.operator_hash",
	"web.cookie_hash_key",
	"web.cookie_block_key",
	"store.dsn",
	"secret_key",
}

func (c *Config) openSecrets() error {
	var box *secret.Box
	if c.SecretKey != "" {
		key, err := secret.ParseKey(c.SecretKey)
		if err != nil {
			return err
		}
		if box, err = secret.New(key); err != nil {
			return err
		}
	}
	err := secret.OpenAll(box,
		&c.Account.Password,
		&c.Notify.Telegram.Token,
		&c.Notify.SendGrid.APIKey,
		&c.Notify.Pushover.Token,
		&c.Notify.Pusher.Pass,
		&c.Store.DSN,
	)
	if err != nil {
		return fmt.Errorf("config secrets: %w", err)
	}
	return nil
}

// Validate reports the first problem that would stop a run.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Account.Username) == "":
		return errors.New("account.username is required")
	case c.Account.Password == "":
		return errors.New("account.password is required")
	case strings.TrimSpace(c.Account.ScheduleID) == "":
		return errors.New("account.schedule_id is required")
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := time.Parse(appointment.TimeLayout, c.Target.DesiredTime); err != nil {
		return fmt.Errorf("target.desired_time %q: want HH:MM", c.Target.DesiredTime)
	}

	t := c.Timing
	switch {
	case t.LoginAttempts < 1:
		return errors.New("timing.login_attempts must be >= 1")
	case t.QueryAttempts < 1:
		return errors.New("timing.query_attempts must be >= 1")
	case t.RetryMin <= 0 || t.RetryMax < t.RetryMin:
		return fmt.Errorf("timing.retry_min/retry_max invalid (%s..%s)", t.RetryMin, t.RetryMax)
	case t.WorkLimit <= 0:
		return errors.New("timing.work_limit must be positive")
	case t.RequestsPerSecond <= 0:
		return errors.New("timing.requests_per_second must be positive")
	}

	switch c.Transport.Driver {
	case "browser", "http":
	default:
		return fmt.Errorf("transport.driver %q: want browser or http", c.Transport.Driver)
	}
	if len(c.Markers.Success) == 0 {
		return errors.New("markers.success must list at least one phrase")
	}

	switch c.Store.Driver {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q: want sqlite or postgres", c.Store.Driver)
	}

	if c.Web.Addr != "" {
		if c.Web.OperatorHash == "" {
			return errors.New("web.operator_hash is required when web.addr is set")
		}
		if _, _, err := c.CookieKeys(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Window() (appointment.TargetWindow, error) {
	w, err := appointment.NewTargetWindow(c.Target.Start, c.Target.End)
	if err != nil {
		return appointment.TargetWindow{}, fmt.Errorf("target: %w", err)
	}
	return w, nil
}

// CookieKeys decodes the base64 cookie keys. Either value may instead be a
// path to a file holding the base64 text (secret mounts).
func (c Config) CookieKeys() (hashKey, blockKey []byte, err error) {
	if c.Web.CookieHashKey == "" || c.Web.CookieBlockKey == "" {
		return nil, nil, errors.New("web.cookie_hash_key and web.cookie_block_key are required (run `visasched keys`)")
	}
	if hashKey, err = decodeKey(c.Web.CookieHashKey); err != nil {
		return nil, nil, fmt.Errorf("web.cookie_hash_key: %w", err)
	}
	if blockKey, err = decodeKey(c.Web.CookieBlockKey); err != nil {
		return nil, nil, fmt.Errorf("web.cookie_block_key: %w", err)
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, nil, fmt.Errorf("web.cookie_block_key: got %d bytes, want 16, 24 or 32", len(blockKey))
	}
	return hashKey, blockKey, nil
}

func decodeKey(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
