package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// TeamService manages the team members leads can be assigned to
type TeamService struct {
	client *upstream.Client
	logger *zap.Logger
}

func NewTeamService(client *upstream.Client, logger *zap.Logger) *TeamService {
	return &TeamService{client: client, logger: logger}
}

// List returns all team members ordered by name
func (s *TeamService) List(ctx context.Context) ([]domain.TeamMember, error) {
	members, err := s.client.ListTeam(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", translate(err))
	}
	sort.SliceStable(members, func(i, j int) bool {
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})
	return members, nil
}

func (s *TeamService) Create(ctx context.Context, req *domain.CreateTeamMemberRequest) (*domain.TeamMember, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}
	if req.Status != "" && !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown member status %q", ErrInvalidInput, req.Status)
	}
	body := *req
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	member, err := s.client.CreateTeamMember(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create team member: %w", translate(err))
	}
	s.logger.Info("team member created", zap.String("memberId", member.ID), zap.String("role", string(member.Role)))
	return member, nil
}

func (s *TeamService) Update(ctx context.Context, id string, req *domain.UpdateTeamMemberRequest) (*domain.TeamMember, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Role != nil && !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *req.Role)
	}
	if req.Status != nil && !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown member status %q", ErrInvalidInput, *req.Status)
	}

	member, err := s.client.UpdateTeamMember(ctx, id, *req)
	if err != nil {
		return nil, fmt.Errorf("failed to update team member: %w", translate(err))
	}
	s.logger.Info("team member updated", zap.String("memberId", id))
	return member, nil
}

func (s *TeamService) Delete(ctx context.Context, id string) (string, error) {
	msg, err := s.client.DeleteTeamMember(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to delete team member: %w", translate(err))
	}
	s.logger.Info("team member deleted", zap.String("memberId", id))
	return msg, nil
}

// ProfileService reads and edits the signed-in user's own profile
type ProfileService struct {
	client *upstream.Client
	logger *zap.Logger
}

func NewProfileService(client *upstream.Client, logger *zap.Logger) *ProfileService {
	return &ProfileService{client: client, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context) (*domain.Profile, error) {
	profile, err := s.client.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", translate(err))
	}
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, req *domain.UpdateProfileRequest) (*domain.Profile, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	profile, err := s.client.UpdateProfile(ctx, *req)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", translate(err))
	}
	return profile, nil
}

// ChangePassword checks the request locally before anything is sent
func (s *ProfileService) ChangePassword(ctx context.Context, req *domain.ChangePasswordRequest) (string, error) {
	if err := validateStruct(req); err != nil {
		return "", err
	}
	msg, err := s.client.ChangePassword(ctx, *req)
	if err != nil {
		return "", fmt.Errorf("failed to change password: %w", translate(err))
	}
	s.logger.Info("password changed")
	return msg, nil
}
