package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/gogpu/interpose/native"
)

// QueueNeed is one queue requirement in a feature config.
type QueueNeed struct {
	// Family names the queue family: "graphics", "compute" or
	// "optical-flow".
	Family string `json:"family"`

	// Count is how many queues the feature needs.
	Count uint32 `json:"count"`
}

// FeatureConfig declares what a feature plugin needs from the device.
// The runtime aggregates the configs of all enabled plugins when
// creating the instance and device.
type FeatureConfig struct {
	// Feature is the plugin name.
	Feature string `json:"feature"`

	// Priority orders plugin startup; lower starts first.
	Priority int `json:"priority"`

	// InstanceExtensions the feature requires.
	InstanceExtensions []string `json:"instance_extensions,omitempty"`

	// DeviceExtensions the feature requires.
	DeviceExtensions []string `json:"device_extensions,omitempty"`

	// Features12 names required 1.2-level feature flags.
	Features12 []string `json:"features_1_2,omitempty"`

	// Features13 names required 1.3-level feature flags.
	Features13 []string `json:"features_1_3,omitempty"`

	// Queues lists additional queues the feature needs.
	Queues []QueueNeed `json:"queues,omitempty"`

	// RequiredTags names resource tag types the feature consumes.
	RequiredTags []string `json:"required_tags,omitempty"`

	// Hooks names the entry points the feature intercepts, for
	// diagnostics.
	Hooks []string `json:"hooks,omitempty"`
}

// ParseConfig decodes a JSON feature config document.
func ParseConfig(data []byte) (FeatureConfig, error) {
	var c FeatureConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return FeatureConfig{}, fmt.Errorf("plugin: parsing feature config: %w", err)
	}
	if c.Feature == "" {
		return FeatureConfig{}, fmt.Errorf("plugin: feature config missing feature name")
	}
	return c, nil
}

// queueFamilyByName maps config family names to native families.
func queueFamilyByName(name string) (native.QueueFamily, bool) {
	switch name {
	case "graphics":
		return native.QueueFamilyGraphics, true
	case "compute":
		return native.QueueFamilyCompute, true
	case "optical-flow":
		return native.QueueFamilyOpticalFlow, true
	default:
		return 0, false
	}
}

// QueueRequests converts the config's queue needs to native requests.
// Unknown family names are skipped.
func (c FeatureConfig) QueueRequests() []native.QueueRequest {
	reqs := make([]native.QueueRequest, 0, len(c.Queues))
	for _, q := range c.Queues {
		family, ok := queueFamilyByName(q.Family)
		if !ok || q.Count == 0 {
			continue
		}
		reqs = append(reqs, native.QueueRequest{Family: family, Count: q.Count})
	}
	return reqs
}
