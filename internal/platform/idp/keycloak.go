package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type KeycloakConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
}

// KeycloakClient talks to the Keycloak admin REST API with a service-account
// token obtained through the client credentials grant.
type KeycloakClient struct {
	cfg    KeycloakConfig
	client *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewKeycloakClient(cfg KeycloakConfig) *KeycloakClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &KeycloakClient{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

type kcUser struct {
	ID         string              `json:"id,omitempty"`
	Username   string              `json:"username,omitempty"`
	FirstName  string              `json:"firstName,omitempty"`
	LastName   string              `json:"lastName,omitempty"`
	Email      string              `json:"email,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

func (k *KeycloakClient) accessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.token != "" && time.Now().Before(k.tokenExp) {
		return k.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
	}
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.cfg.BaseURL, k.cfg.Realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request service token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	k.token = body.AccessToken
	// refresh a little early so a token never expires mid-request
	k.tokenExp = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - 10*time.Second)
	return k.token, nil
}

func (k *KeycloakClient) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s%s", k.cfg.BaseURL, k.cfg.Realm, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return k.client.Do(req)
}

// lookup returns the Keycloak internal id of the user whose username is id,
// or "" when there is none.
func (k *KeycloakClient) lookup(ctx context.Context, id string) (string, error) {
	resp, err := k.do(ctx, http.MethodGet, "/users?exact=true&username="+url.QueryEscape(id), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user search returned status %d", resp.StatusCode)
	}

	var users []kcUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("decode users: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, id) {
			return u.ID, nil
		}
	}
	return "", nil
}

func (k *KeycloakClient) UserExists(ctx context.Context, id string) (bool, error) {
	kcID, err := k.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return kcID != "", nil
}

func (k *KeycloakClient) DeleteUser(ctx context.Context, id string) Result {
	kcID, err := k.lookup(ctx, id)
	if err != nil {
		return failed(err)
	}
	if kcID == "" {
		return Result{Status: StatusNotFound}
	}

	resp, err := k.do(ctx, http.MethodDelete, "/users/"+kcID, nil)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return ok()
	case http.StatusNotFound:
		return Result{Status: StatusNotFound}
	}
	return failedf("delete user returned status %d", resp.StatusCode)
}

func (k *KeycloakClient) UpdateUser(ctx context.Context, p Profile) Result {
	kcID, err := k.lookup(ctx, p.ID)
	if err != nil {
		return failed(err)
	}
	if kcID == "" {
		return Result{Status: StatusNotFound}
	}

	u := kcUser{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
	if p.Phone != "" {
		u.Attributes = map[string][]string{"phone": {p.Phone}}
	}
	resp, err := k.do(ctx, http.MethodPut, "/users/"+kcID, u)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return failedf("update user returned status %d", resp.StatusCode)
	}
	return ok()
}
