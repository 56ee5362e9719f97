// Package github downloads corpus files from a GitHub repository directory.
package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// ClientOptions configures NewClient.
type ClientOptions struct {
	// Token authenticates requests (5000 requests/hour instead of 60). Optional.
	Token string
	// BaseURL overrides https://api.github.com/, e.g. for GitHub Enterprise.
	BaseURL string
}

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// NewClient creates a GitHub client whose transport sleeps through primary and
// secondary rate limits instead of failing.
func NewClient(opts ClientOptions) (*Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	ghClient := github.NewClient(rateLimiter)
	if opts.Token != "" {
		ghClient = ghClient.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		ghClient.BaseURL = u
	}

	return &Client{Client: ghClient}, nil
}
