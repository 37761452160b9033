package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ema-residences/service-reservation/internal/platform/database"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "RESERVATION"

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret          string
	AccessDuration  time.Duration
	RefreshDuration time.Duration
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
	Topic       string
}

// RedisConfig holds the idempotency and dedup store settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SendGridConfig holds the email channel settings. An empty API key disables email.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SchedulerConfig holds cron expressions (with seconds) for background jobs.
type SchedulerConfig struct {
	StayReminders  string
	ReminderWindow time.Duration
}

// ServiceConfig holds all configuration for the reservation service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	CORSOrigins []string
	DB          database.PostgresConfig
	JWT         JWTConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	SendGrid    SendGridConfig
	Scheduler   SchedulerConfig
}

// Load reads an optional .env file, then RESERVATION_* environment variables over defaults.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:        normalizePort(v.GetString("service.port")),
		AppEnv:      v.GetString("app.env"),
		CORSOrigins: splitList(v.GetString("cors.origins")),
		DB: database.PostgresConfig{
			Host:            v.GetString("db.host"),
			Port:            v.GetString("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			DBName:          v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			AccessDuration:  v.GetDuration("jwt.access_duration"),
			RefreshDuration: v.GetDuration("jwt.refresh_duration"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("kafka.brokers")),
			GroupPrefix: v.GetString("kafka.group_prefix"),
			Topic:       v.GetString("kafka.topic"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		SendGrid: SendGridConfig{
			APIKey:    v.GetString("sendgrid.api_key"),
			FromEmail: v.GetString("sendgrid.from_email"),
			FromName:  v.GetString("sendgrid.from_name"),
		},
		Scheduler: SchedulerConfig{
			StayReminders:  v.GetString("scheduler.stay_reminders"),
			ReminderWindow: v.GetDuration("scheduler.reminder_window"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", ":8084")
	v.SetDefault("app.env", "development")
	v.SetDefault("cors.origins", "")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "ema_reservations")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_duration", "15m")
	v.SetDefault("jwt.refresh_duration", "168h")

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_prefix", "ema-")
	v.SetDefault("kafka.topic", "reservation.events")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "no-reply@ema-residences.com")
	v.SetDefault("sendgrid.from_name", "EMA Residences")

	v.SetDefault("scheduler.stay_reminders", "0 0 9 * * *")
	v.SetDefault("scheduler.reminder_window", "24h")
}

func (c *ServiceConfig) validate() error {
	if c.JWT.Secret == "" {
		if c.AppEnv != "development" {
			return fmt.Errorf("%s_JWT_SECRET is required outside development", envPrefix)
		}
		c.JWT.Secret = "dev-secret-change-me"
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%s_KAFKA_BROKERS must list at least one broker", envPrefix)
	}
	if c.Scheduler.ReminderWindow <= 0 {
		return fmt.Errorf("%s_SCHEDULER_REMINDER_WINDOW must be positive", envPrefix)
	}
	return nil
}

func normalizePort(p string) string {
	if p == "" || strings.HasPrefix(p, ":") || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
