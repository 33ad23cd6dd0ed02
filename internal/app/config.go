package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// BuildPaths are .hcl files or directories containing them.
	BuildPaths []string `validate:"required,min=1,dive,required"`
	// ConfigFile is an optional YAML file of property values.
	ConfigFile string
	// EnvFile is an optional .env file read beneath the process environment.
	EnvFile string
	// Overrides are key=value properties from the command line.
	Overrides map[string]string

	LogFormat  string `validate:"oneof=text json pretty"`
	LogLevel   string `validate:"oneof=debug info warn error"`
	Workers    int    `validate:"gte=1"`
	StatusPort int    `validate:"gte=0,lte=65535"`
}

// NewConfig fills defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validator.New().Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return nil, errors.New(strings.Join(msgs, "; "))
		}
		return nil, err
	}
	return &cfg, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return fmt.Sprintf("%s is a required configuration field and cannot be empty", fe.Field())
	case "oneof":
		return fmt.Sprintf("invalid %s %q: must be one of %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s: %v (%s=%s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
}
