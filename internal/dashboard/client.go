package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opsdesk/helpdesk-service/internal/api/dto"
	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// Client is an authenticated API client. The token is explicit,
// request-scoped state: there is no ambient storage read behind the
// caller's back.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds a client for the given API base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token, httpc: &http.Client{}}
}

// WithToken returns a copy of the client carrying a different credential.
func (c *Client) WithToken(token string) *Client {
	return &Client{baseURL: c.baseURL, token: token, httpc: c.httpc}
}

// Token returns the credential the client was built with.
func (c *Client) Token() string {
	return c.token
}

// apiError is the structured error envelope rendered by the API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		User dto.UserResponse `json:"user"`
		Auth dto.AuthResponse `json:"auth"`
	}
	err := c.do(ctx, http.MethodPost, "/users/login", dto.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return "", err
	}
	return out.Auth.Token, nil
}

// AllTickets fetches the global ticket table (admin view).
func (c *Client) AllTickets(ctx context.Context) ([]dto.TicketResponse, error) {
	var out []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserTickets fetches the scoped ticket list for one account.
func (c *Client) UserTickets(ctx context.Context, userID string) ([]dto.TicketResponse, error) {
	var out []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/tickets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Users fetches the account directory (admin view).
func (c *Client) Users(ctx context.Context) ([]dto.UserResponse, error) {
	var out []dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTicket round-trips a partial ticket mutation.
func (c *Client) UpdateTicket(ctx context.Context, ticketID string, patch dto.UpdateTicketRequest) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, http.MethodPatch, "/tickets/"+ticketID, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRole changes an account's role (admin view).
func (c *Client) UpdateRole(ctx context.Context, userID string, role domain.Role) (*dto.UserResponse, error) {
	var out dto.UserResponse
	req := dto.UpdateRoleRequest{UserID: userID, NewRole: string(role)}
	if err := c.do(ctx, http.MethodPatch, "/users/role", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request and decodes the {"data": ...} envelope. Any
// failure, transport or application, comes back as a single terminal
// error for the caller to render.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error apiError `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error.Code != "" {
			return &envelope.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}
