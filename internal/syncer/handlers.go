package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fwsync/internal/domain"
	"fwsync/internal/ports"
	"fwsync/internal/store"
)

// Per-kind handlers. Each one is a single failure domain: it pulls its kind
// through the collector and swaps the stored rows in one transaction, so an
// error leaves the previously synchronized data intact.

func (m *Manager) syncSystemInfo(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rec, err := c.GetSystemInfo(ctx)
	if err != nil {
		return "", err
	}
	info := domain.SystemInfo{
		Hostname:     rec.Hostname,
		Model:        rec.Model,
		Version:      rec.Version,
		Uptime:       rec.Uptime,
		IPAddress:    rec.IPAddress,
		MACAddress:   rec.MACAddress,
		SerialNumber: rec.SerialNumber,
		AppVersion:   rec.AppVersion,
		Status:       rec.Status,
	}
	if err := m.entities.UpsertSystemInfo(ctx, device.ID, info); err != nil {
		return "", err
	}
	return "synchronized system info", nil
}

func (m *Manager) syncPolicies(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportSecurityRules(ctx)
	if err != nil {
		return "", err
	}
	policies := make([]domain.Policy, len(rows))
	for i, r := range rows {
		policies[i] = domain.Policy{
			Seq:             r.Seq,
			RuleName:        r.RuleName,
			Enable:          r.Enable,
			Action:          r.Action,
			Source:          r.Source,
			Destination:     r.Destination,
			Service:         r.Service,
			User:            r.User,
			Application:     r.Application,
			Vsys:            r.Vsys,
			SecurityProfile: r.SecurityProfile,
			Category:        r.Category,
			Description:     r.Description,
		}
	}
	n, err := m.entities.ReplacePolicies(ctx, device.ID, device.Vendor, policies)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized %d policies", n), nil
}

func (m *Manager) syncNetworkObjects(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportNetworkObjects(ctx)
	if err != nil {
		return "", err
	}
	objects := make([]domain.NetworkObject, len(rows))
	for i, r := range rows {
		objects[i] = domain.NetworkObject{Name: r.Name, Type: r.Type, Value: r.Value}
	}
	n, err := m.entities.ReplaceNetworkObjects(ctx, device.ID, device.Vendor, objects)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized %d network objects", n), nil
}

func (m *Manager) syncNetworkGroups(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportNetworkGroups(ctx)
	if err != nil {
		return "", err
	}
	groups := make([]domain.NetworkGroup, len(rows))
	for i, r := range rows {
		groups[i] = domain.NetworkGroup{Name: r.Name, Members: r.Members}
	}
	n, err := m.entities.ReplaceNetworkGroups(ctx, device.ID, device.Vendor, groups)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized %d network groups", n), nil
}

func (m *Manager) syncServiceObjects(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportServiceObjects(ctx)
	if err != nil {
		return "", err
	}
	objects := make([]domain.ServiceObject, len(rows))
	for i, r := range rows {
		objects[i] = domain.ServiceObject{Name: r.Name, Protocol: r.Protocol, Port: r.Port}
	}
	n, err := m.entities.ReplaceServiceObjects(ctx, device.ID, device.Vendor, objects)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized %d service objects", n), nil
}

func (m *Manager) syncServiceGroups(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportServiceGroups(ctx)
	if err != nil {
		return "", err
	}
	groups := make([]domain.ServiceGroup, len(rows))
	for i, r := range rows {
		groups[i] = domain.ServiceGroup{Name: r.Name, Members: r.Members}
	}
	n, err := m.entities.ReplaceServiceGroups(ctx, device.ID, device.Vendor, groups)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized %d service groups", n), nil
}

// syncUsageLogs annotates existing policy rows with rule usage instead of
// replacing anything: usage data has no life of its own outside the policies
// it describes.
func (m *Manager) syncUsageLogs(ctx context.Context, device domain.Device, c ports.Collector) (string, error) {
	rows, err := c.ExportUsageLogs(ctx, m.usageDays)
	if err != nil {
		return "", err
	}
	updates := make([]store.PolicyUsage, len(rows))
	for i, r := range rows {
		updates[i] = store.PolicyUsage{
			RuleName:    r.RuleName,
			LastHitDate: parseHitDate(r.LastHitDate),
			UnusedDays:  r.UnusedDays,
			UsageStatus: r.UsageStatus,
		}
	}
	n, err := m.entities.ApplyUsage(ctx, device.ID, updates)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synchronized usage for %d policies", n), nil
}

// parseHitDate accepts the date formats vendors emit for last-hit timestamps.
func parseHitDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
