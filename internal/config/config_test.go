package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

func TestValidate_ValidConfig(t *testing.T) {
	headcount := 3
	cfg := &Config{
		TeamFile:         "team.yaml",
		TimeLimit:        10 * time.Second,
		WeekStart:        "Mon",
		Weights:          &model.Weights{Understaffing: 100, Role: 80, Clopen: 10, Fairness: 1},
		RoleRules:        []model.RoleMinimum{{Role: "cook", Count: 1}},
		DefaultHeadcount: map[string]int{"Morning": 1, "Dinner": 2},
		DemandOverrides: []DemandOverride{
			{
				RRule:     "FREQ=WEEKLY;BYDAY=FR,SA",
				Periods:   []string{"Dinner"},
				Headcount: &headcount,
			},
		},
	}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_MinimalConfig(t *testing.T) {
	cfg := &Config{
		TeamFile:  "team.yaml",
		TimeLimit: time.Second,
	}

	err := Validate(cfg)
	assert.NoError(t, err)
	assert.Equal(t, model.DefaultPeriods(), cfg.PeriodNames())
	assert.Equal(t, time.Sunday, cfg.StartDay())
}

func TestValidate_MissingRequiredField(t *testing.T) {
	cfg := &Config{
		// Missing TeamFile
		TimeLimit: time.Second,
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := &Config{
		TeamFile:  "team.yaml",
		TimeLimit: time.Second,
		Weights:   &model.Weights{Understaffing: -1},
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_InvalidRRule(t *testing.T) {
	cfg := &Config{
		TeamFile:  "team.yaml",
		TimeLimit: time.Second,
		DemandOverrides: []DemandOverride{
			{RRule: "FREQ=WEEKLY;BYDAY=SU"},
			{RRule: "INVALID_RRULE"},
		},
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule in demandOverrides[1]")
}

func TestValidate_EmptyRRule(t *testing.T) {
	cfg := &Config{
		TeamFile:        "team.yaml",
		TimeLimit:       time.Second,
		DemandOverrides: []DemandOverride{{RRule: ""}},
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_UnknownPeriods(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "default headcount",
			cfg:  Config{DefaultHeadcount: map[string]int{"Brunch": 1}},
		},
		{
			name: "override",
			cfg:  Config{DemandOverrides: []DemandOverride{{RRule: "FREQ=DAILY", Periods: []string{"Brunch"}}}},
		},
		{
			name: "custom periods",
			cfg: Config{
				Periods:          []string{"Early", "Late"},
				DefaultHeadcount: map[string]int{"Morning": 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.TeamFile = "team.yaml"
			tt.cfg.TimeLimit = time.Second

			err := Validate(&tt.cfg)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "unknown period")
		})
	}
}

func TestValidate_InvalidWeekStart(t *testing.T) {
	cfg := &Config{
		TeamFile:  "team.yaml",
		TimeLimit: time.Second,
		WeekStart: "Funday",
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid weekStart")
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	validConfig := `
teamFile: "team.yaml"
timeLimit: 30s
databaseURL: "postgres://localhost/shifts"
weekStart: "Monday"
shiftHours: 5
weights:
  understaffing: 200
  role: 80
  clopen: 25
  fairness: 2
roleRules:
  - role: "cook"
    count: 1
defaultHeadcount:
  Morning: 1
  Lunch: 2
  Dinner: 2
demandOverrides:
  - rrule: "FREQ=WEEKLY;BYDAY=FR,SA"
    periods: ["Dinner"]
    headcount: 4
    mandatory: true
`

	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "team.yaml"), cfg.TeamFile)
	assert.Equal(t, 30*time.Second, cfg.TimeLimit)
	assert.Equal(t, "postgres://localhost/shifts", cfg.DatabaseURL)
	assert.Equal(t, time.Monday, cfg.StartDay())
	assert.Equal(t, 5, cfg.ShiftHours)
	require.NotNil(t, cfg.Weights)
	assert.Equal(t, model.Weights{Understaffing: 200, Role: 80, Clopen: 25, Fairness: 2}, *cfg.Weights)
	assert.Equal(t, []model.RoleMinimum{{Role: "cook", Count: 1}}, cfg.RoleRules)
	assert.Equal(t, map[string]int{"Morning": 1, "Lunch": 2, "Dinner": 2}, cfg.DefaultHeadcount)

	require.Len(t, cfg.DemandOverrides, 1)
	override := cfg.DemandOverrides[0]
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=FR,SA", override.RRule)
	assert.Equal(t, []string{"Dinner"}, override.Periods)
	require.NotNil(t, override.Headcount)
	assert.Equal(t, 4, *override.Headcount)
	require.NotNil(t, override.Mandatory)
	assert.True(t, *override.Mandatory)
}

func TestLoadFromPath_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal_config.yaml")

	minimalConfig := `
teamFile: "/srv/team.yaml"
timeLimit: 5s
`

	err := os.WriteFile(configPath, []byte(minimalConfig), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/team.yaml", cfg.TeamFile)
	assert.Nil(t, cfg.Weights)
	assert.Empty(t, cfg.DemandOverrides)
}

func TestLoadFromPath_InvalidRRule(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_rrule.yaml")

	invalidConfig := `
teamFile: "team.yaml"
timeLimit: 5s
demandOverrides:
  - rrule: "INVALID_RRULE_SYNTAX"
    headcount: 2
`

	err := os.WriteFile(configPath, []byte(invalidConfig), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestLoadFromPath_MissingTimeLimit(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.yaml")

	invalidConfig := `
teamFile: "team.yaml"
# Missing timeLimit
`

	err := os.WriteFile(configPath, []byte(invalidConfig), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_yaml.yaml")

	invalidYAML := `
teamFile: "team.yaml"
  invalid indentation
timeLimit: 5s
`

	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadWithEnv_PrefersEnvFileAndDatabaseURL(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("DATABASE_URL", "postgres://env/shifts")

	require.NoError(t, os.WriteFile("shiftplanner.yaml", []byte("teamFile: base.yaml\ntimeLimit: 5s\n"), 0644))
	require.NoError(t, os.WriteFile("shiftplanner.test.yaml", []byte("teamFile: test.yaml\ntimeLimit: 1s\n"), 0644))

	cfg, err := LoadWithEnv("test")
	require.NoError(t, err)
	assert.Equal(t, "test.yaml", cfg.TeamFile)
	assert.Equal(t, time.Second, cfg.TimeLimit)
	assert.Equal(t, "postgres://env/shifts", cfg.DatabaseURL)

	// Unknown environments fall back to the base file
	cfg, err = LoadWithEnv("staging")
	require.NoError(t, err)
	assert.Equal(t, "base.yaml", cfg.TeamFile)
}
