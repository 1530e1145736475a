package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

type Configuration struct {
	Format            string   `json:"format" validate:"oneof=text json xml"`
	LogLevel          string   `json:"logLevel" validate:"oneof=debug info warn error"`
	NoColor           bool     `json:"noColor"`
	Strict            bool     `json:"strict"`
	Resolve           bool     `json:"resolve"`
	DnsServer         string   `json:"dnsServer" validate:"omitempty,hostname_port"`
	DnsConnectTimeout Duration `json:"dnsConnectTimeout"`
	DnsTimeout        Duration `json:"dnsTimeout"`
	DnsCacheTimeout   Duration `json:"dnsCacheTimeout"`
	EventID           string   `json:"eventID"`
	EventCategory     string   `json:"eventCategory"`
}

// Defaults returns the settings used when no config file is given
func Defaults() Configuration {
	return Configuration{
		Format:   "text",
		LogLevel: "info",
		DnsConnectTimeout: Duration{
			Duration: 1 * time.Second,
		},
		DnsTimeout: Duration{
			Duration: 10 * time.Second,
		},
		DnsCacheTimeout: Duration{
			Duration: 1 * time.Hour,
		},
	}
}

// GetConfig reads the json file f over the supplied defaults
func GetConfig(defaults Configuration, f string) (*Configuration, error) {
	if f == "" {
		return nil, fmt.Errorf("please provide a valid config file")
	}

	b, err := os.ReadFile(f) // nolint: gosec
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(b)

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(&defaults); err != nil {
		return nil, err
	}

	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	return &defaults, nil
}

// Validate reports every invalid setting, not only the first one
func (c Configuration) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var result *multierror.Error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("invalid %s %q", fe.Field(), fmt.Sprint(fe.Value())))
	}
	return result.ErrorOrNil()
}
