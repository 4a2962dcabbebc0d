package domain

import "time"

// StaffRole names an operator role. Approver and assignment roles are free-form
// (for example "HardwareEngineer"); the constants below are the built-in ones.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// StaffMember models a support agent, approver or administrator.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Role      StaffRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
