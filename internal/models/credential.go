package models

import (
	"fmt"
	"time"
)

// CredentialScopeType distinguishes workspace-wide from per-user credentials
type CredentialScopeType string

const (
	ScopeWorkspace CredentialScopeType = "workspace"
	ScopeUser      CredentialScopeType = "user"
)

// CredentialScope names the owner of a credential
type CredentialScope struct {
	Type    CredentialScopeType `json:"type"`
	OwnerID string              `json:"owner_id"`
}

// CredentialKind is the shape of the secret value
type CredentialKind string

const (
	CredentialAPIKey     CredentialKind = "api_key"
	CredentialCookie     CredentialKind = "cookie"
	CredentialSession    CredentialKind = "session"
	CredentialOAuthToken CredentialKind = "oauth_token"
)

// Credential stores an encrypted secret for an (owner, engine, kind, account)
// tuple. The cleartext value is never persisted and never logged.
type Credential struct {
	ID             string          `json:"id" badgerhold:"key"`
	Scope          CredentialScope `json:"scope"`
	Engine         Engine          `json:"engine" badgerhold:"index"`
	Kind           CredentialKind  `json:"kind"`
	Account        string          `json:"account"`
	EncryptedValue string          `json:"encrypted_value"`
	Label          string          `json:"label,omitempty"`
	IsActive       bool            `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time      `json:"last_used_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsUsable reports whether the credential is active and not expired
func (c *Credential) IsUsable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Validate checks required fields
func (c *Credential) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("credential ID is required")
	}
	if c.Scope.OwnerID == "" {
		return fmt.Errorf("credential owner is required")
	}
	if !c.Engine.IsValid() {
		return fmt.Errorf("unknown engine: %q", c.Engine)
	}
	if c.EncryptedValue == "" {
		return fmt.Errorf("credential has no encrypted value")
	}
	return nil
}
