package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hostwell/mailgate/internal/util"
)

const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// TokenSource mints short-lived access tokens from a stored refresh token via
// the standard OAuth refresh-token grant.
type TokenSource struct {
	clientID     string
	clientSecret string // optional for public clients
	tokenURL     string
	client       *http.Client
}

func NewTokenSource(clientID, clientSecret, tokenURL string, timeout time.Duration) *TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		client:       &http.Client{Timeout: timeout},
	}
}

func (t *TokenSource) Refresh(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("client_id", t.clientID)
	if t.clientSecret != "" {
		form.Set("client_secret", t.clientSecret)
	}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("token endpoint status=%d body=%s", res.StatusCode, util.Truncate(string(body), errorBodyCap))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	return tr.AccessToken, nil
}
