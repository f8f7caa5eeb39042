package config

import (
	"github.com/ellavondegurechaff/retaildash/dashboard"
)

// WebAppConfig contains web-specific configuration
type WebAppConfig struct {
	Config      *dashboard.Config
	Debug       bool
	Environment string
}

// NewWebAppConfig creates a new web app configuration
func NewWebAppConfig(cfg *dashboard.Config, debug bool) *WebAppConfig {
	environment := "production"
	if debug {
		environment = "development"
	}

	return &WebAppConfig{
		Config:      cfg,
		Debug:       debug,
		Environment: environment,
	}
}

// GetWebConfig returns the web configuration
func (w *WebAppConfig) GetWebConfig() dashboard.WebConfig {
	return w.Config.Web
}

// GetDataConfig returns the data source configuration
func (w *WebAppConfig) GetDataConfig() dashboard.DataConfig {
	return w.Config.Data
}
