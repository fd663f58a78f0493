package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register creates an account on the server. The call carries no bearer
// token; the token source is consulted only for the record endpoints.
func (c *HTTPClient) Register(ctx context.Context, login, password string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, nil, credentialsRequest{Login: login, Password: password})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classify(resp)
}

// Login exchanges credentials for a bearer token.
func (c *HTTPClient) Login(ctx context.Context, login, password string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, nil, credentialsRequest{Login: login, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return tr.Token, nil
}

// Ping probes server reachability without authentication.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/ping", nil, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classify(resp)
}
