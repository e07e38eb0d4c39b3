package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/straye-as/pipeline-gateway/internal/domain"
)

type memberResult struct {
	Member  domain.TeamMember `json:"member"`
	Message string            `json:"message"`
}

type profileResult struct {
	Profile domain.Profile `json:"profile"`
	Message string         `json:"message"`
}

// ListTeam fetches all team members
func (c *Client) ListTeam(ctx context.Context) ([]domain.TeamMember, error) {
	var body struct {
		Members []domain.TeamMember `json:"members"`
	}
	if err := c.do(ctx, "list_team", http.MethodGet, "/team", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Members, nil
}

// CreateTeamMember adds a team member
func (c *Client) CreateTeamMember(ctx context.Context, req domain.CreateTeamMemberRequest) (*domain.TeamMember, error) {
	var res memberResult
	if err := c.do(ctx, "create_team_member", http.MethodPost, "/team", nil, req, &res); err != nil {
		return nil, err
	}
	return &res.Member, nil
}

// UpdateTeamMember sends a partial update for a team member
func (c *Client) UpdateTeamMember(ctx context.Context, id string, req domain.UpdateTeamMemberRequest) (*domain.TeamMember, error) {
	var res memberResult
	if err := c.do(ctx, "update_team_member", http.MethodPut, "/team/"+url.PathEscape(id), nil, req, &res); err != nil {
		return nil, err
	}
	return &res.Member, nil
}

// DeleteTeamMember removes a team member. Leads that reference the member are
// left to the backend.
func (c *Client) DeleteTeamMember(ctx context.Context, id string) (string, error) {
	var res domain.MessageResponse
	if err := c.do(ctx, "delete_team_member", http.MethodDelete, "/team/"+url.PathEscape(id), nil, nil, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// GetProfile fetches the caller's own profile
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var res profileResult
	if err := c.do(ctx, "get_profile", http.MethodGet, "/profile", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res.Profile, nil
}

// CheckToken reports whether the backend accepts token, by fetching the
// profile it belongs to. 401 and 403 mean refused; other failures are errors.
func (c *Client) CheckToken(ctx context.Context, token string) (bool, error) {
	var res profileResult
	err := c.do(WithToken(ctx, token), "check_token", http.MethodGet, "/profile", nil, nil, &res)
	if err == nil {
		return true, nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}

// UpdateProfile edits the caller's own profile
func (c *Client) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	var res profileResult
	if err := c.do(ctx, "update_profile", http.MethodPut, "/profile", nil, req, &res); err != nil {
		return nil, err
	}
	return &res.Profile, nil
}

// ChangePassword changes the caller's password
func (c *Client) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) (string, error) {
	var res domain.MessageResponse
	if err := c.do(ctx, "change_password", http.MethodPut, "/profile/password", nil, req, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}
