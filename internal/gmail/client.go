package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hostwell/mailgate/internal/util"
)

const DefaultAPIBaseURL = "https://gmail.googleapis.com"

// errorBodyCap bounds upstream error payloads before they are surfaced or
// persisted in the sends ledger.
const errorBodyCap = 1000

// Client is a thin wrapper over the Gmail REST send endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SendRaw submits a raw RFC 822 message (base64url-encoded on the wire) on
// behalf of the connected account. threadID, when set, places the message in
// an existing conversation. Returns the provider-assigned message id.
func (c *Client) SendRaw(ctx context.Context, accessToken string, raw []byte, threadID string) (string, error) {
	payload := map[string]string{
		"raw": base64.RawURLEncoding.EncodeToString(raw),
	}
	if threadID != "" {
		payload["threadId"] = threadID
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("gmail send status=%d body=%s", res.StatusCode, util.Truncate(string(body), errorBodyCap))
	}

	var sr struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}

	return sr.ID, nil
}
