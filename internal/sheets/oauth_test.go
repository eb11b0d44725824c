package sheets

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	// A valid token is returned without contacting Google.
	stored, err := StoredToken(context.Background(), OAuth2Config{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "access", stored.AccessToken)

	require.NoError(t, DeleteToken(path))
	require.NoError(t, DeleteToken(path))
	_, err = LoadToken(path)
	assert.Error(t, err)
}

func TestStoredToken_NoFile(t *testing.T) {
	_, err := StoredToken(context.Background(), OAuth2Config{})
	assert.Error(t, err)
}

func TestScopesIncludeDriveFile(t *testing.T) {
	assert.Contains(t, Scopes, "https://www.googleapis.com/auth/spreadsheets")
	assert.Contains(t, Scopes, "https://www.googleapis.com/auth/drive.file")
}
