package oauth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dimitrije/passkeep/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/gitlab"
)

const gitlabUserURL = "https://gitlab.com/api/v4/user"

type GitLabProvider struct {
	config  *oauth2.Config
	userURL string
}

func NewGitLabProvider(cfg config.OAuthConfig) *GitLabProvider {
	return &GitLabProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read_user"},
			Endpoint:     gitlab.Endpoint,
		},
		userURL: gitlabUserURL,
	}
}

func (p *GitLabProvider) Name() string {
	return "gitlab"
}

func (p *GitLabProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitLabProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	var glUser struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(p.config.Client(ctx, token), p.Name(), p.userURL, &glUser); err != nil {
		return nil, err
	}
	if glUser.Email == "" {
		return nil, fmt.Errorf("gitlab account has no email")
	}

	name := glUser.Name
	if name == "" {
		name = glUser.Username
	}

	return &UserInfo{
		Email:     glUser.Email,
		Name:      name,
		AvatarURL: glUser.AvatarURL,
		ID:        strconv.FormatInt(glUser.ID, 10),
		Provider:  p.Name(),
	}, nil
}
