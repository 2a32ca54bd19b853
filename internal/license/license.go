package license

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// License identifies a validated plugin installation and its plan.
type License struct {
	InstallID string `json:"installId"`
	SiteURL   string `json:"siteUrl"`
	PlanName  string `json:"planName"`
}

// Entry is a resolved license plus the install secret used for signature checks.
type Entry struct {
	License
	SecretKey string    `json:"-"`
	CachedAt  time.Time `json:"-"`
}

// HasAIFeature reports whether the plan includes CV matching.
func HasAIFeature(planName string) bool {
	switch strings.ToLower(strings.TrimSpace(planName)) {
	case "ai_addon", "ai-addon", "ki_addon", "bundle":
		return true
	default:
		return false
	}
}

const signatureMaxAge = 24 * time.Hour

// VerifySignature checks the plugin-supplied request signature,
// hex sha256 of "secret|timestamp". Timestamps older than 24h are rejected.
func VerifySignature(secretKey, timestamp, signature string, now time.Time) bool {
	if secretKey == "" || timestamp == "" || signature == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return false
	}
	if now.Sub(ts) > signatureMaxAge {
		return false
	}
	sum := sha256.Sum256([]byte(secretKey + "|" + timestamp))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}
