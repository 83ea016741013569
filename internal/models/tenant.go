package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a tenant subscription.
type TenantStatus string

const (
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// Tenant is the master-registry record for one subscribing restaurant.
// Each tenant owns a completely separate database; DBName/DBUser/DBPassword
// are the credentials for it. DBName is derived internally and is the key
// used by the connection cache.
type Tenant struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	RestaurantID int64        `json:"restaurant_id" db:"restaurant_id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	DBName       string       `json:"-" db:"db_name"`
	DBUser       string       `json:"-" db:"db_user"`
	DBPassword   string       `json:"-" db:"db_password"`
	UseRedis     bool         `json:"use_redis" db:"use_redis"`
	Status       TenantStatus `json:"status" db:"status"`
	POSType      string       `json:"pos_type" db:"pos_type"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

type SignupRequest struct {
	RestaurantName  string `json:"restaurant_name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	AdminName       string `json:"admin_name" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Country         string `json:"country" binding:"required"`
	PlanID          string `json:"plan_id" binding:"required,uuid"`
}

type SignupResult struct {
	RestaurantID int64            `json:"restaurant_id"`
	PlanID       uuid.UUID        `json:"plan_id"`
	PlanName     string           `json:"plan_name"`
	PlanStatus   AssignmentStatus `json:"plan_status"`
	RenewsAt     time.Time        `json:"renews_at"`
}

type AssignPlanRequest struct {
	PlanID  string `json:"plan_id" binding:"required,uuid"`
	Status  string `json:"status,omitempty"`
	POSType string `json:"pos_type,omitempty"`
}
