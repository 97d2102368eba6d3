package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,default=localhost"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ConnectionBufferSize int  `env:"CONNECTION_BUFFER_SIZE,default=256"`
	EventBufferSize      int  `env:"EVENT_BUFFER_SIZE,default=1024"`
	LimitMessages        *int `env:"LIMIT_MESSAGES"`

	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=5s"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	ModerationEnabled         bool   `env:"MODERATION_ENABLED,default=true"`
	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
