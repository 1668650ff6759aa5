package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	BadgerFilepath        string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel              string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret             string        `env:"JWT_SECRET,required=true"`
	TokenLifetime         time.Duration `env:"TOKEN_LIFETIME,default=24h"`
	CancelCutoff          time.Duration `env:"CANCEL_CUTOFF,default=24h"`
	RebookAfterLateCancel bool          `env:"REBOOK_AFTER_LATE_CANCEL,default=true"`
	EventBuffer           int           `env:"EVENT_BUFFER,default=256"`
	SinkBuffer            int           `env:"SINK_BUFFER,default=32"`
	MaxMessageLength      int           `env:"MAX_MESSAGE_LENGTH,default=4000"`
	CharReplacement       string        `env:"CHARACTER_REPLACEMENT,default=*"`
	DefaultDayStartMin    int           `env:"DEFAULT_DAY_START_MIN,default=540"`
	DefaultDayEndMin      int           `env:"DEFAULT_DAY_END_MIN,default=1020"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", c.CharReplacement)
	}
	return r[0], nil
}
