package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus is the state of a tenant's plan assignment. At most one
// assignment per tenant may be live (trial, active or grace) at any instant;
// assigning a new plan supersedes the previous one instead of deleting it.
type AssignmentStatus string

const (
	AssignmentStatusTrial      AssignmentStatus = "trial"
	AssignmentStatusActive     AssignmentStatus = "active"
	AssignmentStatusGrace      AssignmentStatus = "grace"
	AssignmentStatusSuperseded AssignmentStatus = "superseded"
	AssignmentStatusCancelled  AssignmentStatus = "cancelled"
)

// IsLive reports whether the assignment currently entitles the tenant.
func (s AssignmentStatus) IsLive() bool {
	switch s {
	case AssignmentStatusTrial, AssignmentStatusActive, AssignmentStatusGrace:
		return true
	}
	return false
}

// ServicePlan defines an ordered module list and pricing.
type ServicePlan struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Modules      []string  `json:"modules" db:"modules"`
	PriceMonthly int64     `json:"price_monthly" db:"price_monthly"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PlanAssignment binds a tenant to a plan for a billing period.
type PlanAssignment struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	TenantID  uuid.UUID        `json:"tenant_id" db:"tenant_id"`
	PlanID    uuid.UUID        `json:"plan_id" db:"plan_id"`
	Status    AssignmentStatus `json:"status" db:"status"`
	StartsAt  time.Time        `json:"starts_at" db:"starts_at"`
	RenewsAt  time.Time        `json:"renews_at" db:"renews_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// ModuleStatus is the state of one (tenant, module) entitlement row.
type ModuleStatus string

const (
	ModuleStatusActive   ModuleStatus = "active"
	ModuleStatusDisabled ModuleStatus = "disabled"
	ModuleStatusPending  ModuleStatus = "pending"
)

// TenantModule is one entitlement row. The active set for a tenant is kept
// consistent with its current plan's module list; plan reassignment replaces
// the whole set rather than merging.
type TenantModule struct {
	TenantID  uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	ModuleKey string       `json:"module_key" db:"module_key"`
	Status    ModuleStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
