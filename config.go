package access

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig implements Config from environment variables.
type EnvConfig struct {
	DashboardRoute    string        `env:"ACCESS_DASHBOARD_ROUTE"      envDefault:"/dashboard"`
	SubscriptionRoute string        `env:"ACCESS_SUBSCRIPTION_ROUTE"   envDefault:"/assinatura"`
	LoginRoute        string        `env:"ACCESS_LOGIN_ROUTE"          envDefault:"/login"`
	SignUpRedirectURL string        `env:"ACCESS_SIGNUP_REDIRECT_URL"  envDefault:"/login"`
	MaxLoginAttempts  int           `env:"ACCESS_MAX_LOGIN_ATTEMPTS"   envDefault:"5"`
	AttemptWindow     time.Duration `env:"ACCESS_ATTEMPT_WINDOW"       envDefault:"15m"`
	SessionTimeout    time.Duration `env:"ACCESS_SESSION_TIMEOUT"      envDefault:"30m"`
	WarningLead       time.Duration `env:"ACCESS_TIMEOUT_WARNING_LEAD" envDefault:"5m"`
	PollInterval      time.Duration `env:"ACCESS_ACTIVITY_POLL"        envDefault:"1m"`
}

// ConfigFromEnv loads configuration from the process environment.
func ConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) GetDashboardRoute() string    { return c.DashboardRoute }
func (c *EnvConfig) GetSubscriptionRoute() string { return c.SubscriptionRoute }
func (c *EnvConfig) GetLoginRoute() string        { return c.LoginRoute }
func (c *EnvConfig) GetSignUpRedirectURL() string { return c.SignUpRedirectURL }
func (c *EnvConfig) GetMaxLoginAttempts() int     { return c.MaxLoginAttempts }

func (c *EnvConfig) GetAttemptWindow() time.Duration        { return c.AttemptWindow }
func (c *EnvConfig) GetSessionTimeout() time.Duration       { return c.SessionTimeout }
func (c *EnvConfig) GetTimeoutWarningLead() time.Duration   { return c.WarningLead }
func (c *EnvConfig) GetActivityPollInterval() time.Duration { return c.PollInterval }

var _ Config = (*EnvConfig)(nil)
