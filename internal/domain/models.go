package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Lead values travel as JSON numbers on both sides of the gateway.
	decimal.MarshalJSONWithoutQuotes = true
}

// Enum decoding errors
var (
	ErrInvalidLeadStatus   = errors.New("invalid lead status")
	ErrInvalidLeadPriority = errors.New("invalid lead priority")
	ErrInvalidClientType   = errors.New("invalid client type")
)

// LeadStatus represents the pipeline stage of a lead
type LeadStatus string

const (
	LeadStatusLeadIn         LeadStatus = "LEAD_IN"
	LeadStatusContactMade    LeadStatus = "CONTACT_MADE"
	LeadStatusNeedIdentified LeadStatus = "NEED_IDENTIFIED"
	LeadStatusProposalMade   LeadStatus = "PROPOSAL_MADE"
	LeadStatusNegotiation    LeadStatus = "NEGOTIATION"
	LeadStatusContractSend   LeadStatus = "CONTRACT_SEND"
	LeadStatusWon            LeadStatus = "WON"
	LeadStatusLost           LeadStatus = "LOST"
)

var leadStatusOrder = []LeadStatus{
	LeadStatusLeadIn,
	LeadStatusContactMade,
	LeadStatusNeedIdentified,
	LeadStatusProposalMade,
	LeadStatusNegotiation,
	LeadStatusContractSend,
	LeadStatusWon,
	LeadStatusLost,
}

var leadStatusLabels = map[LeadStatus]string{
	LeadStatusLeadIn:         "Lead In",
	LeadStatusContactMade:    "Contact Made",
	LeadStatusNeedIdentified: "Need Identified",
	LeadStatusProposalMade:   "Proposal Made",
	LeadStatusNegotiation:    "Negotiation",
	LeadStatusContractSend:   "Contract Sent",
	LeadStatusWon:            "Won",
	LeadStatusLost:           "Lost",
}

// LeadStatuses returns every status in pipeline order
func LeadStatuses() []LeadStatus {
	out := make([]LeadStatus, len(leadStatusOrder))
	copy(out, leadStatusOrder)
	return out
}

// IsValid checks if the LeadStatus is a valid enum value
func (s LeadStatus) IsValid() bool {
	_, ok := leadStatusLabels[s]
	return ok
}

// IsTerminal reports whether no further status change is allowed
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusWon || s == LeadStatusLost
}

// Label returns the board column title
func (s LeadStatus) Label() string {
	if l, ok := leadStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseLeadStatus parses a status, accepting any letter case
func ParseLeadStatus(raw string) (LeadStatus, error) {
	s := LeadStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLeadStatus, raw)
	}
	return s, nil
}

func (s *LeadStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLeadStatus, string(data))
	}
	parsed, err := ParseLeadStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// LeadPriority represents how urgent a lead is
type LeadPriority string

const (
	LeadPriorityLow    LeadPriority = "LOW"
	LeadPriorityMedium LeadPriority = "MEDIUM"
	LeadPriorityHigh   LeadPriority = "HIGH"
)

// IsValid checks if the LeadPriority is a valid enum value
func (p LeadPriority) IsValid() bool {
	switch p {
	case LeadPriorityLow, LeadPriorityMedium, LeadPriorityHigh:
		return true
	}
	return false
}

// ParseLeadPriority parses a priority, accepting any letter case
func ParseLeadPriority(raw string) (LeadPriority, error) {
	p := LeadPriority(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLeadPriority, raw)
	}
	return p, nil
}

func (p *LeadPriority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLeadPriority, string(data))
	}
	parsed, err := ParseLeadPriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ClientType tags a lead as a new or returning customer
type ClientType string

const (
	ClientTypeNew      ClientType = "new"
	ClientTypeExisting ClientType = "existing"
)

// IsValid checks if the ClientType is a valid enum value. Empty is allowed.
func (c ClientType) IsValid() bool {
	switch c {
	case "", ClientTypeNew, ClientTypeExisting:
		return true
	}
	return false
}

func (c *ClientType) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClientType, string(data))
	}
	if raw == nil {
		*c = ""
		return nil
	}
	ct := ClientType(strings.ToLower(strings.TrimSpace(*raw)))
	if !ct.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidClientType, *raw)
	}
	*c = ct
	return nil
}

// UserRef is a weak reference to a team member assigned to a lead
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Lead represents a tracked sales opportunity
type Lead struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Company       string          `json:"company,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Contacts      string          `json:"contacts,omitempty"`
	Value         decimal.Decimal `json:"value"`
	Currency      string          `json:"currency"`
	Status        LeadStatus      `json:"status"`
	Priority      LeadPriority    `json:"priority"`
	ClientType    ClientType      `json:"clientType,omitempty"`
	Label         string          `json:"label,omitempty"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	WonAt         *time.Time      `json:"wonAt"`
	LostAt        *time.Time      `json:"lostAt"`
	IsArchived    bool            `json:"isArchived"`
	AssignedUsers []UserRef       `json:"assignedUsers"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ErrLeadInvariant is returned by Lead.Validate
var ErrLeadInvariant = errors.New("lead invariant violated")

// Validate checks the lead's structural invariants: terminal statuses carry
// exactly their matching timestamp, open statuses carry neither, and value is
// never negative.
func (l *Lead) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: missing id", ErrLeadInvariant)
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: lead %s has empty title", ErrLeadInvariant, l.ID)
	}
	if !l.Status.IsValid() {
		return fmt.Errorf("%w: lead %s has status %q", ErrLeadInvariant, l.ID, l.Status)
	}
	if l.Value.IsNegative() {
		return fmt.Errorf("%w: lead %s has negative value %s", ErrLeadInvariant, l.ID, l.Value)
	}
	switch l.Status {
	case LeadStatusWon:
		if l.WonAt == nil || l.LostAt != nil {
			return fmt.Errorf("%w: won lead %s must carry wonAt only", ErrLeadInvariant, l.ID)
		}
	case LeadStatusLost:
		if l.LostAt == nil || l.WonAt != nil {
			return fmt.Errorf("%w: lost lead %s must carry lostAt only", ErrLeadInvariant, l.ID)
		}
	default:
		if l.WonAt != nil || l.LostAt != nil {
			return fmt.Errorf("%w: open lead %s carries a closing timestamp", ErrLeadInvariant, l.ID)
		}
	}
	return nil
}

// IsOpen reports whether the lead is still moving through the pipeline
func (l *Lead) IsOpen() bool {
	return !l.Status.IsTerminal()
}

// IsOverdue reports whether an open lead has passed its due date
func (l *Lead) IsOverdue(now time.Time) bool {
	return l.IsOpen() && l.DueDate != nil && l.DueDate.Before(now)
}

// Clone returns a copy that shares no mutable state with l
func (l Lead) Clone() Lead {
	if l.AssignedUsers != nil {
		users := make([]UserRef, len(l.AssignedUsers))
		copy(users, l.AssignedUsers)
		l.AssignedUsers = users
	}
	if l.DueDate != nil {
		d := *l.DueDate
		l.DueDate = &d
	}
	if l.WonAt != nil {
		w := *l.WonAt
		l.WonAt = &w
	}
	if l.LostAt != nil {
		t := *l.LostAt
		l.LostAt = &t
	}
	return l
}

// ActivityType represents the type of a lead activity
type ActivityType string

const (
	ActivityTypeNote         ActivityType = "note"
	ActivityTypeCall         ActivityType = "call"
	ActivityTypeMeeting      ActivityType = "meeting"
	ActivityTypeEmail        ActivityType = "email"
	ActivityTypeInvoice      ActivityType = "invoice"
	ActivityTypeTask         ActivityType = "task"
	ActivityTypeStatusChange ActivityType = "status_change"
)

// IsValid checks if the ActivityType is a valid enum value
func (at ActivityType) IsValid() bool {
	switch at {
	case ActivityTypeNote, ActivityTypeCall, ActivityTypeMeeting, ActivityTypeEmail,
		ActivityTypeInvoice, ActivityTypeTask, ActivityTypeStatusChange:
		return true
	}
	return false
}

// LeadActivity is an append-only event attached to a lead
type LeadActivity struct {
	ID          string          `json:"id"`
	LeadID      string          `json:"leadId"`
	Type        ActivityType    `json:"type"`
	Title       string          `json:"title,omitempty"`
	Content     string          `json:"content,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedByID string          `json:"createdById,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// InvoiceItem is one line on an invoice activity
type InvoiceItem struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Amount returns quantity times unit price
func (i InvoiceItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// InvoiceMeta is the meta payload of an invoice activity
type InvoiceMeta struct {
	Number   string          `json:"number,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Items    []InvoiceItem   `json:"items" validate:"required,min=1,dive"`
	TaxRate  decimal.Decimal `json:"taxRate"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	DueDate  *time.Time      `json:"dueDate,omitempty"`
}

// ComputeTotals derives subtotal, tax and total from the line items.
// TaxRate is a percentage; tax is rounded to two decimal places.
func (m *InvoiceMeta) ComputeTotals() {
	subtotal := decimal.Zero
	for _, item := range m.Items {
		subtotal = subtotal.Add(item.Amount())
	}
	m.Subtotal = subtotal
	m.Tax = subtotal.Mul(m.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	m.Total = m.Subtotal.Add(m.Tax)
}

// CallMeta is the meta payload of call and meeting activities
type CallMeta struct {
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"gte=0"`
	Outcome         string `json:"outcome,omitempty" validate:"max=500"`
}

// StatusChangeMeta is recorded after a committed pipeline transition
type StatusChangeMeta struct {
	From   LeadStatus `json:"from"`
	To     LeadStatus `json:"to"`
	Action string     `json:"action"`
}

// TeamRole represents the permission level of a team member
type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleSales  TeamRole = "SALES"
	TeamRoleViewer TeamRole = "VIEWER"
)

// IsValid checks if the TeamRole is a valid enum value
func (r TeamRole) IsValid() bool {
	switch r {
	case TeamRoleAdmin, TeamRoleSales, TeamRoleViewer:
		return true
	}
	return false
}

// TeamMemberStatus represents the employment state of a team member
type TeamMemberStatus string

const (
	TeamMemberStatusActive     TeamMemberStatus = "ACTIVE"
	TeamMemberStatusInactive   TeamMemberStatus = "INACTIVE"
	TeamMemberStatusOnboarding TeamMemberStatus = "ONBOARDING"
	TeamMemberStatusOnLeave    TeamMemberStatus = "ON_LEAVE"
)

// IsValid checks if the TeamMemberStatus is a valid enum value
func (s TeamMemberStatus) IsValid() bool {
	switch s {
	case TeamMemberStatusActive, TeamMemberStatusInactive, TeamMemberStatusOnboarding, TeamMemberStatusOnLeave:
		return true
	}
	return false
}

// TeamMember is a user who can be assigned to leads
type TeamMember struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone,omitempty"`
	Avatar    string           `json:"avatar,omitempty"`
	Role      TeamRole         `json:"role"`
	Status    TeamMemberStatus `json:"status"`
	JoinedAt  *time.Time       `json:"joinedAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Profile is the signed-in user's own account
type Profile struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Phone  string   `json:"phone,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
	Role   TeamRole `json:"role,omitempty"`
}

// KPI is a dashboard figure with its period-over-period change in percent
type KPI struct {
	Value      decimal.Decimal `json:"value"`
	Change     float64         `json:"change"`
	IsPositive bool            `json:"isPositive"`
}

// UnmarshalJSON accepts either a full KPI object or a bare number
func (k *KPI) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*k = KPI{}
		return nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		var v decimal.Decimal
		if err := v.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("invalid kpi value: %w", err)
		}
		*k = KPI{Value: v, IsPositive: true}
		return nil
	}
	type plain KPI
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*k = KPI(p)
	return nil
}

// DashboardStats are the top KPI cards computed by the CRM backend
type DashboardStats struct {
	Range         string `json:"range,omitempty"`
	PipelineValue KPI    `json:"pipelineValue"`
	ActiveDeals   KPI    `json:"activeDeals"`
	AvgDeal       KPI    `json:"avgDeal"`
}
