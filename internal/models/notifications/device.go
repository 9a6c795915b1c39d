package models

import "time"

// DeviceRegistration is one push-capable install of a signed-in user.
type DeviceRegistration struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	DeviceToken string    `json:"deviceToken" db:"device_token"`
	Platform    string    `json:"platform" db:"platform"`
	DeviceType  string    `json:"deviceType" db:"device_type"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type RegisterDeviceRequest struct {
	DeviceToken string `json:"deviceToken" binding:"required"`
	Platform    string `json:"platform" binding:"required,oneof=ios android"`
	DeviceType  string `json:"deviceType"`
}

// UnregisterDeviceRequest names exactly one install, unless AllDevices asks
// for every device of the user.
type UnregisterDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
	AllDevices  bool   `json:"allDevices"`
}
