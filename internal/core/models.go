package core

import (
	"encoding/json"
	"time"
)

// Device represents a simulated access-control device.
type Device struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Type      string    `json:"type" gorm:"index;not null"` // access_controller, face_reader, anpr
	Address   string    `json:"address" gorm:"not null"`
	Status    string    `json:"status" gorm:"index;not null;default:inactive"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction represents one generated access event. Transactions are
// written exclusively by the generator and never updated afterwards.
type Transaction struct {
	ID        string          `json:"id" gorm:"primaryKey"` // server-generated UUID
	DeviceID  uint            `json:"device_id" gorm:"index;not null"`
	DeviceUID string          `json:"device_uid" gorm:"index;not null"`
	Username  string          `json:"username" gorm:"not null"`
	EventType string          `json:"event_type" gorm:"index;not null"`
	EventTime time.Time       `json:"event_time" gorm:"index;not null"`
	Payload   json.RawMessage `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at"`
	Device    Device          `json:"-" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// TableName overrides for GORM
func (Device) TableName() string      { return "devices" }
func (Transaction) TableName() string { return "transactions" }

// Constants for the simulation domain
const (
	// Device types
	DeviceTypeAccessController = "access_controller"
	DeviceTypeFaceReader       = "face_reader"
	DeviceTypeANPR             = "anpr"

	// Device statuses
	DeviceStatusActive   = "active"
	DeviceStatusInactive = "inactive"

	// Event types
	EventTypeAccessGranted      = "access_granted"
	EventTypeAccessDenied       = "access_denied"
	EventTypeFaceMatch          = "face_match"
	EventTypePlateRead          = "plate_read"
	EventTypeUnauthorizedAccess = "unauthorized_access"
)

// DeviceTypes is the closed vocabulary accepted by CreateDevice.
var DeviceTypes = []string{
	DeviceTypeAccessController,
	DeviceTypeFaceReader,
	DeviceTypeANPR,
}

// DefaultEventTypes is the compiled-in event vocabulary, overridable
// through configuration.
var DefaultEventTypes = []string{
	EventTypeAccessGranted,
	EventTypeAccessDenied,
	EventTypeFaceMatch,
	EventTypePlateRead,
	EventTypeUnauthorizedAccess,
}

// DefaultUsernames is the compiled-in sample user vocabulary.
var DefaultUsernames = []string{
	"jsmith",
	"mgarcia",
	"achen",
	"kpatel",
	"lnovak",
	"dwilliams",
	"tfischer",
	"romalley",
}

// ValidDeviceType reports whether t belongs to the device-type vocabulary.
func ValidDeviceType(t string) bool {
	for _, known := range DeviceTypes {
		if t == known {
			return true
		}
	}
	return false
}
