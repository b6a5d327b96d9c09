package app

import (
	"context"
	"crypto/subtle"
	"time"
)

const checkTimeout = 5 * time.Second

func (s *Service) Version() map[string]any {
	v := s.cfg.Version
	return map[string]any{
		"version":      v.Version,
		"commit":       v.Commit,
		"buildTime":    v.BuildTime,
		"assetVersion": v.AssetVersion,
		"environment":  s.cfg.Env,
		"frontendUrl":  s.cfg.FrontendURL,
	}
}

// Ready pings the database and, when sessions live there, Redis.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	dbErr := s.store.Ping(ctx)
	ready := dbErr == nil
	checks := map[string]any{"database": checkResult(dbErr)}
	if s.redis != nil {
		err := s.redis.Ping(ctx)
		checks["redis"] = checkResult(err)
		if err != nil {
			ready = false
		}
	}
	return ready, checks
}

// DebugAllowed gates the diagnostics route: either debug endpoints are
// switched on or the caller presents the admin key.
func (s *Service) DebugAllowed(adminKey string) bool {
	if s.cfg.DebugEndpoints {
		return true
	}
	if s.cfg.AdminAPIKey == "" || adminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.cfg.AdminAPIKey)) == 1
}

func (s *Service) Debug(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := map[string]any{
		"database": checkResult(s.store.Ping(ctx)),
	}
	if s.redis != nil {
		checks["redis"] = checkResult(s.redis.Ping(ctx))
	} else {
		checks["redis"] = map[string]any{"status": "disabled"}
	}
	if s.objects != nil {
		check := checkResult(s.objects.Check(ctx))
		check["bucket"] = s.objects.Bucket()
		checks["spaces"] = check
	} else {
		checks["spaces"] = map[string]any{"status": "disabled"}
	}
	if s.search != nil {
		status := "ok"
		if !s.search.Healthy() {
			status = "degraded"
		}
		checks["search"] = map[string]any{"status": status, "engine": s.search.Engine()}
	} else {
		checks["search"] = map[string]any{"status": "disabled"}
	}

	emailMode := s.cfg.EmailMode()
	if s.mailer != nil {
		emailMode = s.mailer.Mode()
	}
	return map[string]any{
		"config":     s.cfg.Redacted(),
		"emailMode":  string(emailMode),
		"checks":     checks,
		"serverTime": s.now().UTC().Format(time.RFC3339),
	}
}

func checkResult(err error) map[string]any {
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	return map[string]any{"status": "ok"}
}
