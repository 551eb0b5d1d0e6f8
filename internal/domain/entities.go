package domain

import "time"

// Synchronized device data. Each successful sync of a kind replaces the whole
// set of rows of that kind for the device, except system info (one row per
// device, updated in place) and usage logs (annotations on existing policies).

// Policy is one security rule collected from a device.
type Policy struct {
	ID       int64 `json:"id"`
	DeviceID int64 `json:"device_id"`

	Seq         int    `json:"seq"`
	RuleName    string `json:"rule_name"`
	Enable      string `json:"enable"`
	Action      string `json:"action"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Service     string `json:"service"`
	User        string `json:"user,omitempty"`
	Application string `json:"application,omitempty"`
	Description string `json:"description,omitempty"`

	// PaloAlto-specific
	Vsys            string `json:"vsys,omitempty"`
	SecurityProfile string `json:"security_profile,omitempty"`
	Category        string `json:"category,omitempty"`

	// Usage annotations maintained by the usage_logs sync
	LastHitDate *time.Time `json:"last_hit_date,omitempty"`
	UnusedDays  int        `json:"unused_days"`
	UsageStatus string     `json:"usage_status,omitempty"`

	Vendor     Vendor    `json:"vendor"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// NetworkObject is a named address object (ip-netmask, ip-range, fqdn, ...).
type NetworkObject struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`

	Vendor     Vendor    `json:"vendor"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// NetworkGroup is a named group of network objects; Members is comma-joined.
type NetworkGroup struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
	Members  string `json:"members"`

	Vendor     Vendor    `json:"vendor"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// ServiceObject is a named protocol/port object.
type ServiceObject struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Port     string `json:"port"`

	Vendor     Vendor    `json:"vendor"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// ServiceGroup is a named group of service objects; Members is comma-joined.
type ServiceGroup struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
	Members  string `json:"members"`

	Vendor     Vendor    `json:"vendor"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

// SystemInfo holds the device's reported identity; at most one row per device.
type SystemInfo struct {
	ID       int64 `json:"id"`
	DeviceID int64 `json:"device_id"`

	Hostname string `json:"hostname"`
	Model    string `json:"model"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`

	IPAddress    string `json:"ip_address,omitempty"`
	MACAddress   string `json:"mac_address,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	AppVersion   string `json:"app_version,omitempty"`
	Status       string `json:"status,omitempty"`

	LastSyncAt time.Time `json:"last_sync_at"`
}
