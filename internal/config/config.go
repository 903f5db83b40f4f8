package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

const configFileName = "shiftplanner.yaml"

// DemandOverride changes the headcount of matching periods on every date of
// the planning week that the recurrence rule produces
type DemandOverride struct {
	RRule     string              `yaml:"rrule" validate:"required"`
	Periods   []string            `yaml:"periods,omitempty"`
	Headcount *int                `yaml:"headcount,omitempty" validate:"omitempty,min=0"`
	Mandatory *bool               `yaml:"mandatory,omitempty"`
	Roles     []model.RoleMinimum `yaml:"roles,omitempty" validate:"dive"`
}

// Config represents the application configuration
type Config struct {
	TeamFile    string        `yaml:"teamFile" validate:"required"`
	TimeLimit   time.Duration `yaml:"timeLimit" validate:"gt=0"`
	DatabaseURL string        `yaml:"databaseURL,omitempty"`
	ServerAddr  string        `yaml:"serverAddr,omitempty"`

	WeekStart         string             `yaml:"weekStart,omitempty"`
	Periods           []string           `yaml:"periods,omitempty" validate:"omitempty,max=16,unique,dive,required"`
	ShiftHours        int                `yaml:"shiftHours,omitempty" validate:"min=0"`
	CompatiblePeriods []model.PeriodPair `yaml:"compatiblePeriods,omitempty" validate:"dive"`

	Weights   *model.Weights      `yaml:"weights,omitempty"`
	RoleRules []model.RoleMinimum `yaml:"roleRules,omitempty" validate:"dive"`

	// DefaultHeadcount is the demand of each period on every day, before
	// the team file and overrides are applied
	DefaultHeadcount map[string]int   `yaml:"defaultHeadcount,omitempty" validate:"dive,min=0"`
	DemandOverrides  []DemandOverride `yaml:"demandOverrides,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from shiftplanner.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	configPath, err := findConfigFile(configFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadWithEnv loads shiftplanner.<env>.yaml, falling back to shiftplanner.yaml.
// Variables from a .env file are loaded first and DATABASE_URL overrides
// the configured database.
func LoadWithEnv(env string) (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	var (
		cfg *Config
		err error
	)
	if env == "" {
		cfg, err = Load()
	} else {
		var configPath string
		configPath, err = findConfigFile(fmt.Sprintf("shiftplanner.%s.yaml", env))
		if err != nil {
			cfg, err = Load()
		} else {
			cfg, err = LoadFromPath(configPath)
		}
	}
	if err != nil {
		return nil, err
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}

	return cfg, nil
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A relative team file is resolved next to the config file
	if cfg.TeamFile != "" && !filepath.IsAbs(cfg.TeamFile) {
		cfg.TeamFile = filepath.Join(filepath.Dir(path), cfg.TeamFile)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.WeekStart != "" {
		if _, err := model.ParseDay(cfg.WeekStart); err != nil {
			return fmt.Errorf("invalid weekStart: %w", err)
		}
	}

	periods := cfg.PeriodNames()
	known := make(map[string]bool, len(periods))
	for _, p := range periods {
		known[p] = true
	}

	for period := range cfg.DefaultHeadcount {
		if !known[period] {
			return fmt.Errorf("unknown period %q in defaultHeadcount", period)
		}
	}

	// Validate rrule syntax for each override
	for i, override := range cfg.DemandOverrides {
		if _, err := rrule.StrToRRule(override.RRule); err != nil {
			return fmt.Errorf("invalid rrule in demandOverrides[%d]: %w", i, err)
		}
		for _, p := range override.Periods {
			if !known[p] {
				return fmt.Errorf("unknown period %q in demandOverrides[%d]", p, i)
			}
		}
	}

	return nil
}

// PeriodNames returns the configured periods or the defaults
func (c *Config) PeriodNames() []string {
	if len(c.Periods) == 0 {
		return model.DefaultPeriods()
	}
	return c.Periods
}

// StartDay returns the configured first day of the week (Sunday if unset)
func (c *Config) StartDay() time.Weekday {
	day, err := model.ParseDay(c.WeekStart)
	if err != nil {
		return time.Sunday
	}
	return day
}

// findConfigFile searches for the named config file in current directory and home directory
func findConfigFile(name string) (string, error) {
	// Check current directory
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", name)
}
