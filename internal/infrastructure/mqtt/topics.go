package mqtt

import "strings"

// ShadowTopicPrefix is the root of the classic (unnamed) device shadow topics.
const ShadowTopicPrefix = "$aws/things/"

// Topic suffixes below the per-thing shadow root.
// They must match the shadow service verbatim.
const (
	SuffixUpdate         = "update"
	SuffixUpdateDelta    = "update/delta"
	SuffixUpdateAccepted = "update/accepted"
	SuffixUpdateRejected = "update/rejected"
	SuffixGet            = "get"
	SuffixGetAccepted    = "get/accepted"
	SuffixGetRejected    = "get/rejected"
)

// Topics provides builders for a thing's shadow topics.
//
//	topics := mqtt.Topics{Thing: "planter-01"}
//	topics.UpdateDelta()
//	// Returns: "$aws/things/planter-01/shadow/update/delta"
type Topics struct {
	Thing string
}

// Root returns the shadow root for the thing, with a trailing slash.
//
// Example: $aws/things/planter-01/shadow/
func (t Topics) Root() string {
	return ShadowTopicPrefix + t.Thing + "/shadow/"
}

// Update returns the topic reports are published to.
func (t Topics) Update() string { return t.Root() + SuffixUpdate }

// UpdateDelta returns the topic carrying desired-but-not-reported differences.
func (t Topics) UpdateDelta() string { return t.Root() + SuffixUpdateDelta }

// UpdateAccepted returns the topic confirming an accepted report.
func (t Topics) UpdateAccepted() string { return t.Root() + SuffixUpdateAccepted }

// UpdateRejected returns the topic carrying report rejections.
func (t Topics) UpdateRejected() string { return t.Root() + SuffixUpdateRejected }

// Get returns the topic a full shadow fetch is requested on.
func (t Topics) Get() string { return t.Root() + SuffixGet }

// GetAccepted returns the topic carrying the fetched shadow document.
func (t Topics) GetAccepted() string { return t.Root() + SuffixGetAccepted }

// GetRejected returns the topic carrying fetch rejections.
func (t Topics) GetRejected() string { return t.Root() + SuffixGetRejected }

// Inbound returns the five topics the device subscribes to.
func (t Topics) Inbound() []string {
	return []string{
		t.UpdateDelta(),
		t.UpdateAccepted(),
		t.UpdateRejected(),
		t.GetAccepted(),
		t.GetRejected(),
	}
}

// Suffix returns the part of topic after the thing's shadow root,
// or "" if the topic does not belong to this thing's shadow.
func (t Topics) Suffix(topic string) string {
	suffix, ok := strings.CutPrefix(topic, t.Root())
	if !ok {
		return ""
	}
	return suffix
}
