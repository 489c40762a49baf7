package health

import "time"

// Service encapsulates health-related checks.
type Service struct {
	env      string
	upstream string
	started  time.Time
}

// NewService constructs a health service. upstream names the pipeline mode
// the app was wired with ("live" or "stub").
func NewService(env, upstream string) *Service {
	return &Service{env: env, upstream: upstream, started: time.Now()}
}

// Status returns a simple health payload.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"ok":            true,
		"env":           s.env,
		"upstream":      s.upstream,
		"uptimeSeconds": int(time.Since(s.started).Seconds()),
	}
}
