package translate

import (
	"sort"
	"strconv"
	"strings"
)

// MetadataPrefix is the reserved namespace VLAN fields are stored under in
// a network's generic metadata.
const MetadataPrefix = "org.dasein."

const (
	metadataName        = MetadataPrefix + "name"
	metadataDescription = MetadataPrefix + "description"
	metadataDomain      = MetadataPrefix + "domain"
	metadataDNS         = MetadataPrefix + "dns."
	metadataNTP         = MetadataPrefix + "ntp."
)

// VLANMetadata holds the VLAN fields that only travel as metadata.
type VLANMetadata struct {
	Name        string
	Description string
	Domain      string
	DNSServers  []string
	NTPServers  []string
}

// Encode writes m as prefixed metadata. Server lists are numbered from 1 in
// order.
func (m *VLANMetadata) Encode() map[string]string {
	md := map[string]string{}
	if m.Name != "" {
		md[metadataName] = m.Name
	}
	if m.Description != "" {
		md[metadataDescription] = m.Description
	}
	if m.Domain != "" {
		md[metadataDomain] = m.Domain
	}
	for i, server := range m.DNSServers {
		md[metadataDNS+strconv.Itoa(i+1)] = server
	}
	for i, server := range m.NTPServers {
		md[metadataNTP+strconv.Itoa(i+1)] = server
	}
	return md
}

// DecodeVLANMetadata splits metadata into the reserved VLAN fields and the
// remaining plain tags. Indexed keys with a non-numeric suffix are dropped.
func DecodeVLANMetadata(md map[string]string) (*VLANMetadata, map[string]string) {
	m := &VLANMetadata{}
	tags := map[string]string{}
	dns := map[int]string{}
	ntp := map[int]string{}

	for key, value := range md {
		switch {
		case key == metadataName:
			m.Name = value
		case key == metadataDescription:
			m.Description = value
		case key == metadataDomain:
			m.Domain = value
		case strings.HasPrefix(key, metadataDNS):
			if idx, ok := positional(key, metadataDNS); ok {
				dns[idx] = value
			}
		case strings.HasPrefix(key, metadataNTP):
			if idx, ok := positional(key, metadataNTP); ok {
				ntp[idx] = value
			}
		case strings.HasPrefix(key, MetadataPrefix):
		default:
			tags[key] = value
		}
	}

	m.DNSServers = ordered(dns)
	m.NTPServers = ordered(ntp)
	return m, tags
}

func positional(key, prefix string) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

func ordered(byIndex map[int]string) []string {
	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, byIndex[idx])
	}
	return out
}
