package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	Store       *StoreConfig
	Mongo       *MongoConfig
	Postgres    *PostgresConfig
	Redis       *RedisConfig
	SecretToken string
}

type ServiceConfig struct {
	Name          string
	Env           string
	Addr          string
	AllowedOrigin string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}

// StoreConfig selects which persistence gateway backend to wire up.
type StoreConfig struct {
	Backend string // "mongo" or "postgres"
}

type MongoConfig struct {
	URI         string
	Database    string
	PingTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}
