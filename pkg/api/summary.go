package api

import "time"

type (
	// ClientSummary is the discovery result an interrogation publishes
	ClientSummary struct {
		Timestamp     time.Time          `json:"timestamp"`
		InstallTime   time.Time          `json:"install_time,omitzero"`
		ClientInfo    *ClientInformation `json:"client_info,omitempty"`
		KnowledgeBase *KnowledgeBase     `json:"knowledge_base,omitempty"`
		CloudInstance *CloudInstance     `json:"cloud_instance,omitempty"`
		Configuration map[string]string  `json:"configuration,omitempty"`
		Libraries     map[string]string  `json:"libraries,omitempty"`
		Interfaces    []*Interface       `json:"interfaces,omitempty"`
		Filesystems   []*Filesystem      `json:"filesystems,omitempty"`
		ClientID      ClientID           `json:"client_id"`
		System        string             `json:"system,omitempty"`
		OSRelease     string             `json:"os_release,omitempty"`
		OSVersion     string             `json:"os_version,omitempty"`
		Kernel        string             `json:"kernel,omitempty"`
		Arch          string             `json:"arch,omitempty"`
		FQDN          string             `json:"fqdn,omitempty"`
		MemorySize    uint64             `json:"memory_size,omitempty"`
	}

	// ClientInformation describes the agent software running on a client
	ClientInformation struct {
		Labels    []string `json:"labels,omitempty"`
		Name      string   `json:"client_name"`
		Version   string   `json:"client_version"`
		BuildTime string   `json:"build_time,omitempty"`
	}

	// PlatformInfo is the payload of the GetPlatformInfo action
	PlatformInfo struct {
		System  string `json:"system"`
		Release string `json:"release,omitempty"`
		Version string `json:"version,omitempty"`
		Kernel  string `json:"kernel,omitempty"`
		Machine string `json:"machine,omitempty"`
		FQDN    string `json:"fqdn,omitempty"`
	}

	// SystemMetadata is the payload of the RRG GetSystemMetadata action
	SystemMetadata struct {
		InstallTime time.Time `json:"install_time,omitzero"`
		Type        string    `json:"type"`
		Version     string    `json:"version,omitempty"`
		FQDN        string    `json:"fqdn,omitempty"`
	}

	// Interface is one network interface reported by a client
	Interface struct {
		Addresses []string `json:"addresses,omitempty"`
		Name      string   `json:"ifname"`
		MAC       string   `json:"mac_address,omitempty"`
	}

	// Filesystem is one mounted filesystem reported by a client
	Filesystem struct {
		Device     string `json:"device"`
		MountPoint string `json:"mount_point"`
		Type       string `json:"type,omitempty"`
	}

	// CloudInstance identifies the cloud VM a client runs on
	CloudInstance struct {
		Provider   string `json:"provider"`
		InstanceID string `json:"instance_id,omitempty"`
		Zone       string `json:"zone,omitempty"`
		Hostname   string `json:"hostname,omitempty"`
	}

	// KnowledgeBase holds host facts gathered by the knowledge base flow
	KnowledgeBase struct {
		Users    []*User `json:"users,omitempty"`
		OS       string  `json:"os,omitempty"`
		FQDN     string  `json:"fqdn,omitempty"`
		Hostname string  `json:"hostname,omitempty"`
	}

	// User is one account reported by a client
	User struct {
		Username string `json:"username"`
		HomeDir  string `json:"homedir,omitempty"`
		UID      int64  `json:"uid,omitempty"`
	}
)
