package config

import "time"

type SessionConfig interface {
	GetExpiryBuffer() time.Duration
	GetRememberMaxAge() time.Duration
	GetTabIdleTimeout() time.Duration
	GetSweepSchedule() string
	GetAuthTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetExpiryBuffer is how long before exp a token is already treated as expired
func (Session) GetExpiryBuffer() time.Duration {
	return time.Duration(GetEnvInt("EXPIRY_BUFFER_SECONDS", 30)) * time.Second
}

// GetRememberMaxAge is the lifetime of the device cookie behind "remember me"
func (Session) GetRememberMaxAge() time.Duration {
	return time.Duration(GetEnvInt("REMEMBER_MAX_AGE_HOURS", 720)) * time.Hour
}

// GetTabIdleTimeout is how long an unused tab session survives before the sweeper drops it
func (Session) GetTabIdleTimeout() time.Duration {
	return time.Duration(GetEnvInt("TAB_IDLE_MINUTES", 480)) * time.Minute
}

func (Session) GetSweepSchedule() string {
	return GetEnv("SWEEP_SCHEDULE", "@every 5m")
}

func (Session) GetAuthTimeout() time.Duration {
	return time.Duration(GetEnvInt("AUTH_TIMEOUT_SECONDS", 15)) * time.Second
}
