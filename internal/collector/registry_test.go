package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwsync/internal/domain"
	"fwsync/internal/ports"
)

func firewall(vendor domain.Vendor) domain.Device {
	return domain.Device{
		Name:      "lab-fw",
		Category:  domain.CategoryFirewall,
		Vendor:    vendor,
		IPAddress: "10.0.0.1",
		Port:      443,
	}
}

func TestFactoryDispatch(t *testing.T) {
	f := DefaultFactory()

	c, err := f.Collector(firewall(domain.VendorMock))
	require.NoError(t, err)
	require.NotNil(t, c)

	_, err = f.Collector(firewall(domain.VendorPaloAlto))
	assert.ErrorContains(t, err, "no collector registered")
}

func TestFactoryRejectsNonFirewall(t *testing.T) {
	f := DefaultFactory()
	d := firewall(domain.VendorMock)
	d.Category = "switch"

	_, err := f.Collector(d)
	assert.ErrorContains(t, err, "does not support synchronization")
}

func TestFactoryRegisterReplaces(t *testing.T) {
	f := NewFactory()
	f.Register(domain.VendorMock, func(d domain.Device) (ports.Collector, error) {
		return NewMock(d), nil
	})

	c, err := f.Collector(firewall(domain.VendorMock))
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, c)
}

func TestMockDeterministic(t *testing.T) {
	m := NewMock(firewall(domain.VendorMock))
	ctx := context.Background()

	info, err := m.GetSystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lab-fw", info.Hostname)

	rules, err := m.ExportSecurityRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "allow-web", rules[0].RuleName)

	usage, err := m.ExportUsageLogs(ctx, 90)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, 90, usage[1].UnusedDays)
}
