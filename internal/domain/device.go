package domain

import "time"

// Vendor identifies the adapter family used to talk to a device.
type Vendor string

const (
	VendorPaloAlto Vendor = "paloalto"
	VendorMF2      Vendor = "mf2"
	VendorNGF      Vendor = "ngf"
	VendorMock     Vendor = "mock"
)

// CategoryFirewall is the only device category the sync engine handles.
const CategoryFirewall = "firewall"

// Device is a managed network security device. The sync engine reads devices,
// it never creates or modifies them.
type Device struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Vendor   Vendor `json:"vendor"`

	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
