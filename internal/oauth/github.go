package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dimitrije/passkeep/internal/config"
	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
)

type GitHubProvider struct {
	config *oauth2.Config
	// apiBaseURL overrides https://api.github.com/ when set.
	apiBaseURL string
}

func NewGitHubProvider(cfg config.OAuthConfig) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email", "read:user"},
			Endpoint:     githubendpoint.Endpoint,
		},
	}
}

func (p *GitHubProvider) Name() string {
	return "github"
}

func (p *GitHubProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client, err := p.client(ctx, token)
	if err != nil {
		return nil, err
	}

	ghUser, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	email := ghUser.GetEmail()
	if email == "" {
		email, err = primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}

	name := ghUser.GetName()
	if name == "" {
		name = ghUser.GetLogin()
	}

	return &UserInfo{
		Email:     email,
		Name:      name,
		AvatarURL: ghUser.GetAvatarURL(),
		ID:        strconv.FormatInt(ghUser.GetID(), 10),
		Provider:  p.Name(),
	}, nil
}

func (p *GitHubProvider) client(ctx context.Context, token *oauth2.Token) (*github.Client, error) {
	client := github.NewClient(p.config.Client(ctx, token))
	if p.apiBaseURL != "" {
		base, err := url.Parse(p.apiBaseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = base
	}
	return client, nil
}

// primaryEmail prefers the primary verified address, then any verified one.
func primaryEmail(ctx context.Context, client *github.Client) (string, error) {
	emails, _, err := client.Users.ListEmails(ctx, &github.ListOptions{PerPage: 100})
	if err != nil {
		return "", fmt.Errorf("failed to get user emails: %w", err)
	}

	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	for _, e := range emails {
		if e.GetVerified() {
			return e.GetEmail(), nil
		}
	}

	return "", fmt.Errorf("no verified email found")
}
