package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubState marks a redirect as the GitHub OAuth callback.
const GitHubState = "github_oauth"

// GitHubAuthURL returns the GitHub authorize URL for clientID, or "" when no
// client id is configured.
func GitHubAuthURL(clientID, redirectURL string) string {
	if clientID == "" {
		return ""
	}
	cfg := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"user:email"},
		Endpoint:    github.Endpoint,
	}
	return cfg.AuthCodeURL(GitHubState)
}

// ProviderStatus describes whether a login provider can be offered.
type ProviderStatus struct {
	Provider Provider
	Enabled  bool
	// Message is shown in place of the login option when it is disabled.
	Message string
}

// Providers lists the OAuth providers and whether each is configured.
func Providers(googleClientID, githubClientID string) []ProviderStatus {
	status := func(p Provider, id, env string) ProviderStatus {
		if id != "" {
			return ProviderStatus{Provider: p, Enabled: true}
		}
		return ProviderStatus{Provider: p, Message: env + " is not set; " + string(p) + " login unavailable"}
	}
	return []ProviderStatus{
		status(ProviderGoogle, googleClientID, "GOOGLE_CLIENT_ID"),
		status(ProviderGitHub, githubClientID, "GITHUB_CLIENT_ID"),
	}
}
