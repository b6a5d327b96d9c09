package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// InviteURL is the frontend link embedded in invitation emails. The asset
// version forces browsers holding an old bundle to fetch the current one.
func (c Config) InviteURL(token string) string {
	return c.FrontendURL + "/invite/" + url.PathEscape(token) + "?v=" + url.QueryEscape(c.Version.AssetVersion)
}

func (c Config) VerifyEmailURL(token string) string {
	return c.FrontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (c Config) ResetPasswordURL(token string) string {
	return c.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (c Config) ChannelURL(workspaceSlug, channelID string) string {
	return c.FrontendURL + "/w/" + url.PathEscape(workspaceSlug) + "/c/" + url.PathEscape(channelID)
}

func (c Config) TaskURL(workspaceSlug, taskID string) string {
	return c.FrontendURL + "/w/" + url.PathEscape(workspaceSlug) + "/tasks/" + url.PathEscape(taskID)
}

func (c Config) CacheBustURL() string {
	return c.FrontendURL + "/?v=" + url.QueryEscape(c.Version.AssetVersion)
}

// CacheBustURLAt appends a per-request cb parameter so intermediaries cannot
// serve a cached redirect target.
func (c Config) CacheBustURLAt(now time.Time) string {
	return c.CacheBustURL() + "&cb=" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Redacted returns the resolved configuration with secrets reduced to set/unset.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"environment":    c.Env,
		"addr":           c.Addr,
		"frontendUrl":    c.FrontendURL,
		"apiUrl":         c.APIURL,
		"corsOrigin":     c.CORSOrigin,
		"databaseUrl":    redactURL(c.DatabaseURL),
		"redisUrl":       redactURL(c.RedisURL),
		"jwtSecret":      setOrUnset(c.JWTSecret),
		"adminApiKey":    setOrUnset(c.AdminAPIKey),
		"debugEndpoints": c.DebugEndpoints,
		"maxUploadBytes": c.MaxUploadBytes,
		"meiliUrl":       c.MeiliURL,
		"version": map[string]any{
			"version":      c.Version.Version,
			"commit":       c.Version.Commit,
			"buildTime":    c.Version.BuildTime,
			"assetVersion": c.Version.AssetVersion,
		},
		"email": map[string]any{
			"mode":              string(c.EmailMode()),
			"gmailClientId":     maskPrefix(c.Gmail.ClientID, 8),
			"gmailClientSecret": setOrUnset(c.Gmail.ClientSecret),
			"gmailRefreshToken": setOrUnset(c.Gmail.RefreshToken),
			"gmailUser":         c.Gmail.User,
			"from":              c.Gmail.From,
			"smtpHost":          c.SMTP.Host,
			"smtpPort":          c.SMTP.Port,
			"smtpUsername":      c.SMTP.Username,
			"smtpPassword":      setOrUnset(c.SMTP.Password),
		},
		"spaces": map[string]any{
			"enabled":     c.Spaces.Enabled(),
			"key":         maskPrefix(c.Spaces.Key, 4),
			"secret":      setOrUnset(c.Spaces.Secret),
			"endpoint":    c.Spaces.Endpoint,
			"region":      c.Spaces.Region,
			"bucket":      c.Spaces.Bucket,
			"cdnEndpoint": c.Spaces.CDNEndpoint,
		},
		"otel": map[string]any{
			"enabled":     c.OTel.Enabled(),
			"endpoint":    c.OTel.Endpoint,
			"serviceName": c.OTel.ServiceName,
		},
	}
}

func setOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unset"
	}
	return "set"
}

func maskPrefix(value string, keep int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unset"
	}
	if len(value) <= keep {
		return strings.Repeat("*", len(value))
	}
	return value[:keep] + "..."
}

func redactURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
		}
	}
	return parsed.String()
}
