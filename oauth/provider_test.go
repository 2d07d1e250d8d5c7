package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGoogle(t *testing.T) {
	p, err := decodeGoogle([]byte(`{"id":"1009","email":"ada@example.com","verified_email":true,"name":"Ada","picture":"https://img.example.com/a.png"}`))
	require.NoError(t, err)
	assert.Equal(t, Profile{Subject: "1009", Email: "ada@example.com", Name: "Ada", AvatarURL: "https://img.example.com/a.png"}, p)

	p, err = decodeGoogle([]byte(`{"id":"1009","email":"ada@example.com","verified_email":false}`))
	require.NoError(t, err)
	assert.Empty(t, p.Email)

	_, err = decodeGoogle([]byte(`not json`))
	assert.Error(t, err)
}

func TestProviderDefaults(t *testing.T) {
	g := Google("id", "secret", "https://app.example.com/oauth/google/callback")
	assert.Equal(t, "google", g.Name)
	assert.Equal(t, googleUserInfoURL, g.UserInfoURL)
	assert.Empty(t, g.EmailsURL)
	assert.Len(t, g.Config.Scopes, 2)

	gh := GitHub("id", "secret", "https://app.example.com/oauth/github/callback")
	assert.Equal(t, "github", gh.Name)
	assert.Equal(t, []string{"read:user", "user:email"}, gh.Config.Scopes)
	assert.Equal(t, githubEmailsURL, gh.EmailsURL)
}

func TestPrimaryEmail(t *testing.T) {
	email, err := primaryEmail([]byte(`[{"email":"a@example.com","primary":true,"verified":true}]`))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	email, err = primaryEmail([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, email)
}
