// Package tags models EC2 resource tags as an ordered list of key/value
// pairs and holds the tag keys that drive the backup retention policy.
//
// EC2 tag lists may carry the same key more than once when they are built
// by appending (for example, copying instance tags after the system tags).
// Set keeps every entry in order; Resolve makes the provider's last-wins
// behavior explicit instead of deduplicating silently.
package tags

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Tag keys read or written by the backup workflow.
const (
	// KeyDeleteOn holds the image expiry date (YYYY-MM-DD).
	KeyDeleteOn = "LEB-DeleteOn"
	// KeyInstanceNameFrom records the name of the source instance.
	KeyInstanceNameFrom = "InstanceNameFrom"
	// KeyName is the EC2 display name tag.
	KeyName = "Name"
	// KeyReboot is the per-instance override allowing a reboot during imaging.
	KeyReboot = "BACKUP_REBOOT"
	// KeyCopyTag is the per-instance override for copying instance tags.
	KeyCopyTag = "BACKUP_COPYTAG"

	// DefaultSelector is the tag key selecting managed instances and images.
	DefaultSelector = "BackupIT"

	// reservedPrefix marks tags owned by AWS that cannot be set by callers.
	reservedPrefix = "aws:"
)

// Tag is a single key/value pair.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Set is an ordered list of tags. Duplicate keys are allowed.
type Set []Tag

// FromEC2 converts an EC2 tag list, preserving order.
func FromEC2(in []types.Tag) Set {
	out := make(Set, 0, len(in))
	for _, t := range in {
		out = append(out, Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

// EC2 converts the set to the SDK representation, preserving order.
func (s Set) EC2() []types.Tag {
	out := make([]types.Tag, 0, len(s))
	for _, t := range s {
		out = append(out, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

// Get returns the last value stored under key.
func (s Set) Get(key string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Key == key {
			return s[i].Value, true
		}
	}
	return "", false
}

// Has reports whether any entry uses key.
func (s Set) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Append returns a new set with tags added after the existing entries.
func (s Set) Append(tags ...Tag) Set {
	out := make(Set, 0, len(s)+len(tags))
	out = append(out, s...)
	return append(out, tags...)
}

// Resolve applies last-wins semantics. The result holds one entry per key,
// placed where the key first appeared, carrying the key's last value.
// Keys that occurred more than once are returned in first-seen order.
func (s Set) Resolve() (Set, []string) {
	index := make(map[string]int, len(s))
	seen := make(map[string]int, len(s))
	var out Set
	var collisions []string

	for _, t := range s {
		seen[t.Key]++
		if seen[t.Key] == 2 {
			collisions = append(collisions, t.Key)
		}
		if i, ok := index[t.Key]; ok {
			out[i].Value = t.Value
			continue
		}
		index[t.Key] = len(out)
		out = append(out, t)
	}

	return out, collisions
}

// WithoutReserved drops tags in the aws: namespace and returns their keys.
func (s Set) WithoutReserved() (Set, []string) {
	out := make(Set, 0, len(s))
	var dropped []string
	for _, t := range s {
		if strings.HasPrefix(t.Key, reservedPrefix) {
			dropped = append(dropped, t.Key)
			continue
		}
		out = append(out, t)
	}
	return out, dropped
}

// Without returns the set minus every entry using key.
func (s Set) Without(key string) Set {
	out := make(Set, 0, len(s))
	for _, t := range s {
		if t.Key != key {
			out = append(out, t)
		}
	}
	return out
}

// Enabled reads a boolean override tag. Only the exact value "false"
// disables it; a missing tag or any other value keeps it enabled.
func (s Set) Enabled(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return true
	}
	return v != "false"
}
