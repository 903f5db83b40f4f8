package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg       *config.Config
	Database  db.Database
	Scheduler *scheduler.Scheduler
	Registry  *prometheus.Registry
	Logger    *zap.Logger
	Ctx       context.Context
}

// requireConfig returns an error when no configuration could be loaded
func (app *AppContext) requireConfig() error {
	if app.Cfg == nil {
		return fmt.Errorf("no configuration loaded (create shiftplanner.yaml first)")
	}
	return nil
}

// requireDatabase returns an error when no database is configured
func (app *AppContext) requireDatabase() error {
	if app.Database == nil {
		return fmt.Errorf("no database configured (set databaseURL or DATABASE_URL)")
	}
	return nil
}
