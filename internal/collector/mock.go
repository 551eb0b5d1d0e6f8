package collector

import (
	"context"
	"time"

	"fwsync/internal/domain"
	"fwsync/internal/ports"
)

// Mock is the built-in test/demo adapter. It answers every export with a
// small deterministic dataset derived from the device, without touching the
// network.
type Mock struct {
	device domain.Device
}

func NewMock(d domain.Device) *Mock {
	return &Mock{device: d}
}

func (m *Mock) GetSystemInfo(ctx context.Context) (ports.SystemInfoRecord, error) {
	return ports.SystemInfoRecord{
		Hostname:  m.device.Name,
		Model:     "mock-fw-1000",
		Version:   "1.0.0",
		Uptime:    "42 days",
		IPAddress: m.device.IPAddress,
		Status:    "healthy",
	}, nil
}

func (m *Mock) ExportSecurityRules(ctx context.Context) ([]ports.PolicyRow, error) {
	return []ports.PolicyRow{
		{
			Seq: 1, RuleName: "allow-web", Enable: "Y", Action: "allow",
			Source: "any", Destination: "dmz-web", Service: "tcp-443",
			Description: "inbound web traffic",
		},
		{
			Seq: 2, RuleName: "allow-dns", Enable: "Y", Action: "allow",
			Source: "internal", Destination: "any", Service: "udp-53",
		},
		{
			Seq: 3, RuleName: "deny-all", Enable: "Y", Action: "deny",
			Source: "any", Destination: "any", Service: "any",
			Description: "default deny",
		},
	}, nil
}

func (m *Mock) ExportNetworkObjects(ctx context.Context) ([]ports.ObjectRow, error) {
	return []ports.ObjectRow{
		{Name: "dmz-web", Type: "ip-netmask", Value: "10.0.1.0/24"},
		{Name: "internal", Type: "ip-netmask", Value: "192.168.0.0/16"},
	}, nil
}

func (m *Mock) ExportNetworkGroups(ctx context.Context) ([]ports.GroupRow, error) {
	return []ports.GroupRow{
		{Name: "trusted-nets", Members: "dmz-web,internal"},
	}, nil
}

func (m *Mock) ExportServiceObjects(ctx context.Context) ([]ports.ServiceRow, error) {
	return []ports.ServiceRow{
		{Name: "tcp-443", Protocol: "tcp", Port: "443"},
		{Name: "udp-53", Protocol: "udp", Port: "53"},
	}, nil
}

func (m *Mock) ExportServiceGroups(ctx context.Context) ([]ports.GroupRow, error) {
	return []ports.GroupRow{
		{Name: "web-services", Members: "tcp-443"},
	}, nil
}

func (m *Mock) ExportUsageLogs(ctx context.Context, days int) ([]ports.UsageRow, error) {
	lastHit := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	return []ports.UsageRow{
		{RuleName: "allow-web", LastHitDate: lastHit, UnusedDays: 0, UsageStatus: "used"},
		{RuleName: "allow-dns", LastHitDate: "", UnusedDays: days, UsageStatus: "unused"},
	}, nil
}

var _ ports.Collector = (*Mock)(nil)
