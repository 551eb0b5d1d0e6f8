package ports

import (
	"context"

	"fwsync/internal/domain"
)

// SystemInfoRecord is the identity snapshot a collector reads from a device.
type SystemInfoRecord struct {
	Hostname     string
	Model        string
	Version      string
	Uptime       string
	IPAddress    string
	MACAddress   string
	SerialNumber string
	AppVersion   string
	Status       string
}

// PolicyRow is one exported security rule.
type PolicyRow struct {
	Seq             int
	RuleName        string
	Enable          string
	Action          string
	Source          string
	Destination     string
	Service         string
	User            string
	Application     string
	Vsys            string
	SecurityProfile string
	Category        string
	Description     string
}

// ObjectRow is one exported network object.
type ObjectRow struct {
	Name  string
	Type  string
	Value string
}

// GroupRow is one exported object group; Members is comma-joined.
type GroupRow struct {
	Name    string
	Members string
}

// ServiceRow is one exported service object.
type ServiceRow struct {
	Name     string
	Protocol string
	Port     string
}

// UsageRow is one exported rule usage record.
type UsageRow struct {
	RuleName    string
	LastHitDate string // vendor-formatted, parsed by the usage handler
	UnusedDays  int
	UsageStatus string
}

// Collector fetches configuration and state from one device. Implementations
// wrap a vendor API; any transport, auth or parse failure surfaces as an
// error, which the sync engine treats uniformly as a per-kind failure.
type Collector interface {
	GetSystemInfo(ctx context.Context) (SystemInfoRecord, error)
	ExportSecurityRules(ctx context.Context) ([]PolicyRow, error)
	ExportNetworkObjects(ctx context.Context) ([]ObjectRow, error)
	ExportNetworkGroups(ctx context.Context) ([]GroupRow, error)
	ExportServiceObjects(ctx context.Context) ([]ServiceRow, error)
	ExportServiceGroups(ctx context.Context) ([]GroupRow, error)
	ExportUsageLogs(ctx context.Context, days int) ([]UsageRow, error)
}

// CollectorFactory builds the collector matching a device's vendor.
type CollectorFactory interface {
	Collector(d domain.Device) (Collector, error)
}
