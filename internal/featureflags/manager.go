// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags known to the application.
const (
	// PostImages allows attaching a picture to a post.
	PostImages = "post_images"
	// ThreadedComments allows replying to a comment.
	ThreadedComments = "threaded_comments"
)

// Defaults apply to known flags missing from the configuration.
var Defaults = map[string]string{
	PostImages:       "on",
	ThreadedComments: "on",
}

// rule is a parsed flag value: always off, always on, or a percentage of users.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(n, 0), 100)}, true
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "post_images=on,threaded_comments=25%"
type Manager struct {
	configured map[string]rule
	rules      map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config
// string. Malformed pairs and unknown values are ignored.
func NewManager(raw string) *Manager {
	m := &Manager{configured: make(map[string]rule), rules: make(map[string]rule)}
	for name, value := range Defaults {
		r, _ := parseRule(value)
		m.rules[name] = r
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		r, valid := parseRule(value)
		if key == "" || !valid {
			continue
		}
		m.configured[key] = r
		m.rules[key] = r
	}
	return m
}

// Enabled returns whether a flag is enabled for a given user. A percentage
// rollout is deterministic per user and never includes anonymous users.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	switch {
	case !ok || r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the configured values, without defaults.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.configured))
	for k, r := range m.configured {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user, including defaults.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
