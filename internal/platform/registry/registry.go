package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// Identity is what a patient declares about themself at patient file
// creation. The national registry checks it against its own records.
type Identity struct {
	NationalID string     `json:"national_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	BirthDate  civil.Date `json:"birth_date"`
}

// Rejection is returned when the registry disagrees with the declared
// identity. Reasons maps a field to the registry's explanation.
type Rejection struct {
	Reasons map[string]string
}

func (r *Rejection) Error() string {
	parts := make([]string, 0, len(r.Reasons))
	for field, reason := range r.Reasons {
		parts = append(parts, field+": "+reason)
	}
	return "identity rejected by registry: " + strings.Join(parts, ", ")
}

type Verifier interface {
	Verify(ctx context.Context, id Identity) error
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Valid   bool              `json:"valid"`
	Reasons map[string]string `json:"reasons"`
}

// Verify returns nil when the registry accepts id, a *Rejection when it
// refuses it, and any other error when the registry could not be consulted.
func (c *Client) Verify(ctx context.Context, id Identity) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/identities/verify", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	if body.Valid {
		return nil
	}
	if len(body.Reasons) == 0 {
		body.Reasons = map[string]string{"identity": "not recognised"}
	}
	return &Rejection{Reasons: body.Reasons}
}

// AcceptAll is used when no registry is configured.
type AcceptAll struct{}

func (AcceptAll) Verify(context.Context, Identity) error { return nil }
