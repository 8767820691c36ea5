package domain

import "time"

// Provider identifies which external system a credential authenticates to.
type Provider string

const (
	ProviderCalendar    Provider = "calendar"
	ProviderMail        Provider = "mail"
	ProviderTaskManager Provider = "task_manager"
)

// CredentialStatus tracks whether a credential can still be used.
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
)

// ProviderCredential holds OAuth-style tokens for one (user, provider) pair.
// At most one active credential may exist per (user, provider) — spec §3.
type ProviderCredential struct {
	User         string           `json:"user" db:"user_id"`
	Provider     Provider         `json:"provider" db:"provider"`
	AccessToken  string           `json:"-" db:"access_token"`
	RefreshToken string           `json:"-" db:"refresh_token"`
	Expiry       time.Time        `json:"expiry" db:"expiry"`
	Scopes       []string         `json:"scopes" db:"-"`
	Status       CredentialStatus `json:"status" db:"status"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// NeedsRefresh reports whether the credential should be refreshed before use,
// honoring the configured clock-skew tolerance (spec §3: expiry <= now+skew).
func (c *ProviderCredential) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return !c.Expiry.After(now.Add(skew))
}

// Revoke marks the credential unusable; pipelines depending on it must then
// fail fast with AuthRequired.
func (c *ProviderCredential) Revoke(at time.Time) {
	c.Status = CredentialRevoked
	c.UpdatedAt = at
}
