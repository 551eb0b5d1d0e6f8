package domain

import "fmt"

// SyncKind identifies one category of device data the engine can collect.
type SyncKind string

const (
	KindSystemInfo     SyncKind = "system_info"
	KindPolicies       SyncKind = "policies"
	KindNetworkObjects SyncKind = "network_objects"
	KindNetworkGroups  SyncKind = "network_groups"
	KindServiceObjects SyncKind = "service_objects"
	KindServiceGroups  SyncKind = "service_groups"
	KindUsageLogs      SyncKind = "usage_logs"

	// KindAll is an enqueue-time sentinel that expands to every kind.
	KindAll SyncKind = "all"
)

// execOrder is the canonical execution order. Requested kinds always run in
// this order, no matter how they were submitted.
var execOrder = []SyncKind{
	KindSystemInfo,
	KindPolicies,
	KindNetworkObjects,
	KindNetworkGroups,
	KindServiceObjects,
	KindServiceGroups,
	KindUsageLogs,
}

// kindWeights drives progress math only. Policies dominate because they carry
// the bulk of the data; system info and usage logs are quick reads.
var kindWeights = map[SyncKind]int{
	KindSystemInfo:     5,
	KindPolicies:       30,
	KindNetworkObjects: 20,
	KindNetworkGroups:  15,
	KindServiceObjects: 15,
	KindServiceGroups:  10,
	KindUsageLogs:      5,
}

var kindLabels = map[SyncKind]string{
	KindSystemInfo:     "system info",
	KindPolicies:       "policies",
	KindNetworkObjects: "network objects",
	KindNetworkGroups:  "network groups",
	KindServiceObjects: "service objects",
	KindServiceGroups:  "service groups",
	KindUsageLogs:      "usage logs",
}

// AllKinds returns every sync kind in canonical execution order.
func AllKinds() []SyncKind {
	out := make([]SyncKind, len(execOrder))
	copy(out, execOrder)
	return out
}

// ParseKind validates a kind identifier. KindAll is accepted; callers expand
// it before task creation.
func ParseKind(s string) (SyncKind, error) {
	k := SyncKind(s)
	if k == KindAll {
		return k, nil
	}
	if _, ok := kindWeights[k]; !ok {
		return "", fmt.Errorf("unknown sync kind %q", s)
	}
	return k, nil
}

// SortKinds filters the requested kinds into canonical execution order,
// dropping duplicates and unknown values.
func SortKinds(kinds []SyncKind) []SyncKind {
	requested := make(map[SyncKind]bool, len(kinds))
	for _, k := range kinds {
		requested[k] = true
	}
	var out []SyncKind
	for _, k := range execOrder {
		if requested[k] {
			out = append(out, k)
		}
	}
	return out
}

// Weight returns the progress weight for a kind. Unknown kinds count as 10,
// matching the engine's historical default.
func (k SyncKind) Weight() int {
	if w, ok := kindWeights[k]; ok {
		return w
	}
	return 10
}

// Label returns the human-readable name used in status messages.
func (k SyncKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}
