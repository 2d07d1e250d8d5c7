// Package oauth runs the authorization-code handshake with external identity
// providers and turns the result into a folioAuth.ExternalIdentity.
package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// Profile is the subset of a provider's userinfo document the linker needs.
type Profile struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// Provider describes one OAuth identity provider.
type Provider struct {
	// Name is the path segment used in /oauth/{name}/start.
	Name   string
	Config oauth2.Config

	// UserInfoURL returns the profile document for the access token.
	UserInfoURL string

	// EmailsURL, when set, is consulted if the profile carries no email.
	EmailsURL string

	decode func(body []byte) (Profile, error)
}

// Google returns a provider for Google sign-in.
func Google(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "google",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		UserInfoURL: googleUserInfoURL,
		decode:      decodeGoogle,
	}
}

// GitHub returns a provider for GitHub sign-in.
func GitHub(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: "github",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		UserInfoURL: githubUserURL,
		EmailsURL:   githubEmailsURL,
		decode:      decodeGitHub,
	}
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func decodeGoogle(body []byte) (Profile, error) {
	var u googleUser
	if err := json.Unmarshal(body, &u); err != nil {
		return Profile{}, fmt.Errorf("decode google profile: %w", err)
	}
	// An unverified Google address cannot be used to claim a local account.
	if !u.VerifiedEmail {
		u.Email = ""
	}
	return Profile{Subject: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.Picture}, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func decodeGitHub(body []byte) (Profile, error) {
	var u githubUser
	if err := json.Unmarshal(body, &u); err != nil {
		return Profile{}, fmt.Errorf("decode github profile: %w", err)
	}
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = u.Login
	}
	return Profile{
		Subject:   strconv.FormatInt(u.ID, 10),
		Email:     u.Email,
		Name:      name,
		AvatarURL: u.AvatarURL,
	}, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// primaryEmail picks the primary verified address from a GitHub
// /user/emails document.
func primaryEmail(body []byte) (string, error) {
	var emails []githubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", fmt.Errorf("decode github emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}
