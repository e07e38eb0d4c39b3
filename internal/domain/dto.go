package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Request DTOs

type CreateLeadRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Company         string          `json:"company,omitempty" validate:"max=200"`
	Email           string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string          `json:"phone,omitempty" validate:"max=50"`
	Contacts        string          `json:"contacts,omitempty" validate:"max=1000"`
	Value           decimal.Decimal `json:"value"`
	Currency        string          `json:"currency" validate:"required,len=3,alpha"`
	Status          LeadStatus      `json:"status,omitempty"`
	Priority        LeadPriority    `json:"priority,omitempty"`
	ClientType      ClientType      `json:"clientType,omitempty"`
	Label           string          `json:"label,omitempty" validate:"max=50"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	AssignedUserIDs []string        `json:"assignedUserIds,omitempty" validate:"omitempty,dive,required"`
}

// UpdateLeadRequest edits descriptive fields. Status and archival only change
// through transitions.
type UpdateLeadRequest struct {
	Title           *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Company         *string          `json:"company,omitempty" validate:"omitempty,max=200"`
	Email           *string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone           *string          `json:"phone,omitempty" validate:"omitempty,max=50"`
	Contacts        *string          `json:"contacts,omitempty" validate:"omitempty,max=1000"`
	Value           *decimal.Decimal `json:"value,omitempty"`
	Currency        *string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Priority        *LeadPriority    `json:"priority,omitempty"`
	ClientType      *ClientType      `json:"clientType,omitempty"`
	Label           *string          `json:"label,omitempty" validate:"omitempty,max=50"`
	DueDate         *time.Time       `json:"dueDate,omitempty"`
	AssignedUserIDs []string         `json:"assignedUserIds,omitempty" validate:"omitempty,dive,required"`
}

type TransitionRequest struct {
	Action TransitionAction `json:"action" validate:"required"`
	Target LeadStatus       `json:"target,omitempty"`
}

type CreateActivityRequest struct {
	Type    ActivityType    `json:"type" validate:"required"`
	Title   string          `json:"title,omitempty" validate:"max=200"`
	Content string          `json:"content,omitempty" validate:"max=10000"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

type CreateTeamMemberRequest struct {
	Name     string           `json:"name" validate:"required,max=200"`
	Email    string           `json:"email" validate:"required,email"`
	Phone    string           `json:"phone,omitempty" validate:"max=50"`
	Role     TeamRole         `json:"role" validate:"required"`
	Status   TeamMemberStatus `json:"status,omitempty"`
	JoinedAt *time.Time       `json:"joinedAt,omitempty"`
}

type UpdateTeamMemberRequest struct {
	Name     *string           `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email    *string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string           `json:"phone,omitempty" validate:"omitempty,max=50"`
	Role     *TeamRole         `json:"role,omitempty"`
	Status   *TeamMemberStatus `json:"status,omitempty"`
	JoinedAt *time.Time        `json:"joinedAt,omitempty"`
}

type UpdateProfileRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// Outbound bodies for the CRM backend

// LeadDraft is the body of a lead creation call: every lead field except id
// and server-assigned timestamps.
type LeadDraft struct {
	Title           string          `json:"title"`
	Company         string          `json:"company,omitempty"`
	Email           string          `json:"email,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Contacts        string          `json:"contacts,omitempty"`
	Value           decimal.Decimal `json:"value"`
	Currency        string          `json:"currency"`
	Status          LeadStatus      `json:"status"`
	Priority        LeadPriority    `json:"priority"`
	ClientType      ClientType      `json:"clientType,omitempty"`
	Label           string          `json:"label,omitempty"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	WonAt           *time.Time      `json:"wonAt,omitempty"`
	LostAt          *time.Time      `json:"lostAt,omitempty"`
	IsArchived      bool            `json:"isArchived"`
	AssignedUserIDs []string        `json:"assignedUserIds,omitempty"`
}

// LeadPatch is a partial lead update. Nil fields are left out of the body;
// ClearWonAt and ClearLostAt send an explicit null.
type LeadPatch struct {
	Title           *string
	Company         *string
	Email           *string
	Phone           *string
	Contacts        *string
	Value           *decimal.Decimal
	Currency        *string
	Status          *LeadStatus
	Priority        *LeadPriority
	ClientType      *ClientType
	Label           *string
	DueDate         *time.Time
	WonAt           *time.Time
	LostAt          *time.Time
	ClearWonAt      bool
	ClearLostAt     bool
	IsArchived      *bool
	AssignedUserIDs []string
}

// IsEmpty reports whether the patch would send no fields
func (p LeadPatch) IsEmpty() bool {
	b, _ := p.MarshalJSON()
	return string(b) == "{}"
}

func (p LeadPatch) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	set := func(key string, ok bool, v any) {
		if ok {
			body[key] = v
		}
	}
	set("title", p.Title != nil, p.Title)
	set("company", p.Company != nil, p.Company)
	set("email", p.Email != nil, p.Email)
	set("phone", p.Phone != nil, p.Phone)
	set("contacts", p.Contacts != nil, p.Contacts)
	set("value", p.Value != nil, p.Value)
	set("currency", p.Currency != nil, p.Currency)
	set("status", p.Status != nil, p.Status)
	set("priority", p.Priority != nil, p.Priority)
	set("clientType", p.ClientType != nil, p.ClientType)
	set("label", p.Label != nil, p.Label)
	set("dueDate", p.DueDate != nil, p.DueDate)
	set("wonAt", p.WonAt != nil, p.WonAt)
	set("lostAt", p.LostAt != nil, p.LostAt)
	if p.ClearWonAt {
		body["wonAt"] = nil
	}
	if p.ClearLostAt {
		body["lostAt"] = nil
	}
	set("isArchived", p.IsArchived != nil, p.IsArchived)
	set("assignedUserIds", p.AssignedUserIDs != nil, p.AssignedUserIDs)
	return json.Marshal(body)
}

// Response DTOs

type LeadListResponse struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
}

type LeadCardDTO struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	Company             string           `json:"company,omitempty"`
	Value               decimal.Decimal  `json:"value"`
	Currency            string           `json:"currency"`
	Status              LeadStatus       `json:"status"`
	Priority            LeadPriority     `json:"priority"`
	ClientType          ClientType       `json:"clientType,omitempty"`
	Label               string           `json:"label,omitempty"`
	DueDate             *time.Time       `json:"dueDate,omitempty"`
	Overdue             bool             `json:"overdue"`
	IsArchived          bool             `json:"isArchived"`
	AssignedUsers       []UserRef        `json:"assignedUsers"`
	Pending             bool             `json:"pending"`
	PendingAction       TransitionAction `json:"pendingAction,omitempty"`
	PendingTransitionID string           `json:"pendingTransitionId,omitempty"`
}

type BoardColumnDTO struct {
	Status          LeadStatus                 `json:"status"`
	Label           string                     `json:"label"`
	Terminal        bool                       `json:"terminal"`
	Count           int                        `json:"count"`
	TotalValue      decimal.Decimal            `json:"totalValue"`
	ValueByCurrency map[string]decimal.Decimal `json:"valueByCurrency"`
	MixedCurrency   bool                       `json:"mixedCurrency"`
	Leads           []LeadCardDTO              `json:"leads"`
}

type BoardDTO struct {
	Columns         []BoardColumnDTO `json:"columns"`
	IncludeArchived bool             `json:"includeArchived"`
	PendingCount    int              `json:"pendingCount"`
	FetchedAt       time.Time        `json:"fetchedAt"`
}

type FeedItemDTO struct {
	ID           string       `json:"id"`
	Type         ActivityType `json:"type"`
	Icon         string       `json:"icon"`
	Title        string       `json:"title"`
	Summary      string       `json:"summary,omitempty"`
	CreatedByID  string       `json:"createdById,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	RelativeTime string       `json:"relativeTime"`
}

type PipelineMetricsDTO struct {
	Range          string     `json:"range"`
	From           *time.Time `json:"from,omitempty"`
	To             time.Time  `json:"to"`
	TotalWon       KPI        `json:"totalWon"`
	TotalLost      KPI        `json:"totalLost"`
	TotalLeads     KPI        `json:"totalLeads"`
	ConversionRate KPI        `json:"conversionRate"`
	PipelineValue  KPI        `json:"pipelineValue"`
	AverageDeal    KPI        `json:"averageDeal"`
	ActiveDeals    KPI        `json:"activeDeals"`
	MixedCurrency  bool       `json:"mixedCurrency"`
}

type ReportDTO struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// MessageResponse is the body of mutations that only report a message
type MessageResponse struct {
	Message string `json:"message"`
}
