// Package store provides the PostgreSQL persistence layer: GORM models for
// the operations data set and database lifecycle helpers.
package store

import (
	"time"

	"gorm.io/gorm"
)

// Roles assignable to a profile.
const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Assignment statuses. Status writes are unguarded; derived views live in
// the reporting package.
const (
	AssignmentPending    = "pending"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
	AssignmentBlocked    = "blocked"
)

// Sensor statuses.
const (
	SensorActive   = "active"
	SensorInactive = "inactive"
)

// Alert statuses.
const (
	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// Profile is a user account: customer, employee, or admin.
type Profile struct {
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"index;not null" json:"role"`
	FullName     string         `gorm:"not null" json:"full_name"`
	Phone        string         `json:"phone"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	ID           uint           `gorm:"primaryKey" json:"id"`
}

func (Profile) TableName() string { return "profiles" }

// Session is a server-side login session keyed by an opaque token.
type Session struct {
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ProfileID uint      `gorm:"index;not null" json:"profile_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ID        uint      `gorm:"primaryKey" json:"id"`
}

func (Session) TableName() string { return "sessions" }

// House is a service address belonging to a customer.
type House struct {
	CustomerID    uint           `gorm:"index;not null" json:"customer_id"`
	Address       string         `gorm:"not null" json:"address"`
	City          string         `json:"city"`
	CollectionDay string         `json:"collection_day"`
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	ID            uint           `gorm:"primaryKey" json:"id"`
}

func (House) TableName() string { return "houses" }

// Assignment is one scheduled service visit linking a house to an employee.
type Assignment struct {
	HouseID      uint       `gorm:"index;not null" json:"house_id"`
	EmployeeID   uint       `gorm:"index;not null" json:"employee_id"`
	Status       string     `gorm:"index;not null;default:pending" json:"status"`
	AssignedDate time.Time  `gorm:"index;not null" json:"assigned_date"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ID           uint       `gorm:"primaryKey" json:"id"`
}

func (Assignment) TableName() string { return "assignments" }

// Vehicle is a collection truck. Last known position is overwritten by
// location pings; readers treat it as a snapshot.
type Vehicle struct {
	Name          string         `gorm:"not null" json:"name"`
	Plate         string         `gorm:"uniqueIndex;not null" json:"plate"`
	Status        string         `gorm:"index;not null;default:active" json:"status"`
	AssignedTo    *uint          `gorm:"index" json:"assigned_to,omitempty"`
	LastLatitude  float64        `json:"last_latitude"`
	LastLongitude float64        `json:"last_longitude"`
	LastSeenAt    *time.Time     `gorm:"index" json:"last_seen_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	ID            uint           `gorm:"primaryKey" json:"id"`
}

func (Vehicle) TableName() string { return "vehicles" }

// MaintenanceSchedule is a planned service item for a vehicle.
type MaintenanceSchedule struct {
	VehicleID   uint       `gorm:"index;not null" json:"vehicle_id"`
	ServiceType string     `gorm:"not null" json:"service_type"`
	DueDate     time.Time  `gorm:"index;not null" json:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ID          uint       `gorm:"primaryKey" json:"id"`
}

func (MaintenanceSchedule) TableName() string { return "maintenance_schedules" }

// Subscription is a customer's purchased plan, with the priced snapshot the
// calculator produced at checkout.
type Subscription struct {
	ProfileID    uint       `gorm:"index;not null" json:"profile_id"`
	PlanKind     string     `gorm:"not null" json:"plan_kind"`
	PlanID       string     `gorm:"not null" json:"plan_id"`
	AddOnIDs     StringList `gorm:"type:jsonb" json:"addon_ids"`
	UnitCount    int        `json:"unit_count"`
	Duration     string     `gorm:"not null" json:"duration"`
	PaymentType  string     `gorm:"not null" json:"payment_type"`
	MonthlyTotal float64    `gorm:"not null" json:"monthly_total"`
	Total        float64    `gorm:"not null" json:"total"`
	Status       string     `gorm:"index;not null;default:active" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ID           uint       `gorm:"primaryKey" json:"id"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Message is a simple inbox item between profiles.
type Message struct {
	SenderID    uint       `gorm:"index;not null" json:"sender_id"`
	RecipientID uint       `gorm:"index;not null" json:"recipient_id"`
	Subject     string     `json:"subject"`
	Body        string     `gorm:"not null" json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ID          uint       `gorm:"primaryKey" json:"id"`
}

func (Message) TableName() string { return "messages" }

// AuditLog records an action taken through the API. Writes are
// opportunistic, not systematic.
type AuditLog struct {
	ActorID   uint      `gorm:"index" json:"actor_id"`
	Action    string    `gorm:"not null" json:"action"`
	Entity    string    `gorm:"index" json:"entity"`
	EntityID  uint      `json:"entity_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ID        uint      `gorm:"primaryKey" json:"id"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Sensor is a registered IoT device (bin fill sensor, truck telemetry unit).
// APIKey authenticates the webhook; AlertThresholds configures per-reading
// alerting and is stored as JSONB.
type Sensor struct {
	DeviceID        string          `gorm:"uniqueIndex;not null" json:"device_id"`
	APIKey          string          `gorm:"uniqueIndex;not null" json:"-"`
	Name            string          `json:"name"`
	HouseID         *uint           `gorm:"index" json:"house_id,omitempty"`
	Status          string          `gorm:"index;not null;default:active" json:"status"`
	AlertThresholds ThresholdConfig `gorm:"type:jsonb" json:"alert_thresholds"`
	LastSeenAt      *time.Time      `gorm:"index" json:"last_seen_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
	ID              uint            `gorm:"primaryKey" json:"id"`
}

func (Sensor) TableName() string { return "iot_sensors" }

// SensorReading is one stored measurement.
type SensorReading struct {
	SensorID    uint      `gorm:"index:idx_sensor_recorded;not null" json:"sensor_id"`
	DeviceID    string    `gorm:"index;not null" json:"device_id"`
	ReadingType string    `gorm:"index;not null" json:"reading_type"`
	Value       float64   `gorm:"not null" json:"value"`
	Unit        string    `json:"unit"`
	RecordedAt  time.Time `gorm:"index:idx_sensor_recorded;index;not null" json:"recorded_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	ID          uint      `gorm:"primaryKey" json:"id"`
}

func (SensorReading) TableName() string { return "iot_sensor_readings" }

// SensorAlert is raised when a reading breaches the sensor's configured
// threshold for its type.
type SensorAlert struct {
	SensorID    uint      `gorm:"index;not null" json:"sensor_id"`
	DeviceID    string    `gorm:"index;not null" json:"device_id"`
	ReadingType string    `gorm:"not null" json:"reading_type"`
	Value       float64   `gorm:"not null" json:"value"`
	Limit       float64   `gorm:"not null" json:"limit"`
	Direction   string    `gorm:"not null" json:"direction"` // below_min or above_max
	Status      string    `gorm:"index;not null;default:open" json:"status"`
	RecordedAt  time.Time `gorm:"index;not null" json:"recorded_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	ID          uint      `gorm:"primaryKey" json:"id"`
}

func (SensorAlert) TableName() string { return "iot_sensor_alerts" }
