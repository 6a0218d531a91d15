// Package resource holds the provider-agnostic records every dialect
// translates into.
package resource

import (
	"fmt"
	"strings"
	"time"
)

// UnknownZone is the data center id a provider reports before an instance
// has been placed.
const UnknownZone = "unknown zone"

type VmState string

const (
	VmStatePending    VmState = "PENDING"
	VmStateRunning    VmState = "RUNNING"
	VmStateRebooting  VmState = "REBOOTING"
	VmStateStopping   VmState = "STOPPING"
	VmStatePaused     VmState = "PAUSED"
	VmStateTerminated VmState = "TERMINATED"
)

type Architecture string

const (
	ArchitectureI32 Architecture = "I32"
	ArchitectureI64 Architecture = "I64"
)

// legacy32BitProducts are the only product ids that run 32-bit images.
var legacy32BitProducts = map[string]bool{
	"m1.small":  true,
	"c1.medium": true,
}

// ArchitectureForProduct infers the architecture from a product id. It does
// not consult the catalog.
func ArchitectureForProduct(productID string) Architecture {
	if legacy32BitProducts[productID] {
		return ArchitectureI32
	}
	return ArchitectureI64
}

type Platform string

const (
	PlatformUnix    Platform = "UNIX"
	PlatformWindows Platform = "WINDOWS"
	PlatformUnknown Platform = "UNKNOWN"
)

// GuessPlatform maps a free-form platform or image description onto a
// Platform.
func GuessPlatform(s string) Platform {
	s = strings.ToLower(s)
	switch {
	case s == "":
		return PlatformUnknown
	case strings.Contains(s, "windows"):
		return PlatformWindows
	case strings.Contains(s, "linux"), strings.Contains(s, "unix"),
		strings.Contains(s, "ubuntu"), strings.Contains(s, "debian"),
		strings.Contains(s, "centos"), strings.Contains(s, "fedora"),
		strings.Contains(s, "red hat"), strings.Contains(s, "rhel"),
		strings.Contains(s, "bsd"), strings.Contains(s, "solaris"):
		return PlatformUnix
	}
	return PlatformUnknown
}

// Product is an immutable catalog entry.
type Product struct {
	ID          string `json:"id" yaml:"productId"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	CPUCount    int    `json:"cpu_count" yaml:"cpuCount"`
	RAMMb       int    `json:"ram_mb" yaml:"ramInMb"`
	DiskGb      int    `json:"disk_gb" yaml:"diskSizeInGb"`
}

func (p *Product) String() string {
	return fmt.Sprintf("%s [%d CPU, %dMB RAM, %dGB disk]", p.ID, p.CPUCount, p.RAMMb, p.DiskGb)
}

// PasswordState says whether a root password is known yet.
type PasswordState string

const (
	PasswordNone    PasswordState = ""
	PasswordReady   PasswordState = "ready"
	PasswordPending PasswordState = "pending"
)

// PasswordResult is either ready with a password or pending with the
// instance id to retry retrieval with.
type PasswordResult struct {
	State      PasswordState `json:"state,omitempty"`
	Password   string        `json:"password,omitempty"`
	InstanceID string        `json:"instance_id,omitempty"`
}

func PasswordReadyResult(password string) PasswordResult {
	return PasswordResult{State: PasswordReady, Password: password}
}

func PasswordPendingResult(instanceID string) PasswordResult {
	return PasswordResult{State: PasswordPending, InstanceID: instanceID}
}

func (pr PasswordResult) Ready() bool   { return pr.State == PasswordReady }
func (pr PasswordResult) Pending() bool { return pr.State == PasswordPending }

type VirtualMachine struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	RegionID         string            `json:"region_id"`
	DataCenterID     string            `json:"data_center_id"`
	ImageID          string            `json:"image_id,omitempty"`
	VlanID           string            `json:"vlan_id,omitempty"`
	State            VmState           `json:"state"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Product          *Product          `json:"product,omitempty"`
	Architecture     Architecture      `json:"architecture"`
	Platform         Platform          `json:"platform"`
	PrivateAddresses []string          `json:"private_addresses"`
	PublicAddresses  []string          `json:"public_addresses"`
	PrivateDNSName   string            `json:"private_dns_name,omitempty"`
	PublicDNSName    string            `json:"public_dns_name,omitempty"`
	Persistent       bool              `json:"persistent"`
	Tags             map[string]string `json:"tags"`
	CreationTime     time.Time         `json:"creation_time"`
	LastBootTime     time.Time         `json:"last_boot_time"`
	Password         PasswordResult    `json:"password"`
}

// ZoneAssigned is false while the provider still reports the unknown zone.
func (vm *VirtualMachine) ZoneAssigned() bool {
	return vm.DataCenterID != "" && vm.DataCenterID != UnknownZone
}

type VLANState string

const (
	VLANStatePending   VLANState = "PENDING"
	VLANStateAvailable VLANState = "AVAILABLE"
)

type VLAN struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	RegionID    string            `json:"region_id"`
	CIDR        string            `json:"cidr"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	State       VLANState         `json:"state"`
	DomainName  string            `json:"domain_name,omitempty"`
	DNSServers  []string          `json:"dns_servers"`
	NTPServers  []string          `json:"ntp_servers"`
	Tags        map[string]string `json:"tags"`
}

type SubnetState string

const (
	SubnetStatePending   SubnetState = "PENDING"
	SubnetStateAvailable SubnetState = "AVAILABLE"
)

type IPVersion string

const (
	IPv4 IPVersion = "IPV4"
	IPv6 IPVersion = "IPV6"
)

type Subnet struct {
	ID          string            `json:"id"`
	VlanID      string            `json:"vlan_id"`
	OwnerID     string            `json:"owner_id"`
	RegionID    string            `json:"region_id"`
	CIDR        string            `json:"cidr"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	State       SubnetState       `json:"state"`
	IPVersion   IPVersion         `json:"ip_version"`
	Tags        map[string]string `json:"tags"`
}

// ResourceStatus is the lightweight id and state pair returned by status
// listings.
type ResourceStatus struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CDNContainer describes the CDN settings of a storage container.
type CDNContainer struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	TTL     int    `json:"ttl"`
	URI     string `json:"uri,omitempty"`
	SSLURI  string `json:"ssl_uri,omitempty"`
}
