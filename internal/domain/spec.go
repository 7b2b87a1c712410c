package domain

// AllowedScanOptions is the closed set of nmap flags a caller may pass.
var AllowedScanOptions = []string{
	"-sS",    // SYN scan
	"-sT",    // TCP connect
	"-sU",    // UDP
	"-Pn",    // no ping
	"--open", // open ports only
	"-n",     // no DNS
	"-sV",    // version detection
}

const (
	DefaultTimingTemplate = 3
	DefaultThreads        = 10
	DefaultWordlist       = 1

	MaxThreads           = 100
	MaxSubdomainWordlist = 3
	MaxPathWordlist      = 5
)

// DefaultExcludeStatus is applied to path enumeration when no codes are given.
var DefaultExcludeStatus = []int{404}

// JobSpec is the validated, immutable input to a job. Exactly one payload is
// set and it matches Kind.
type JobSpec struct {
	Kind          JobKind            `json:"kind"`
	Ping          *PingSpec          `json:"ping,omitempty"`
	PortScan      *PortScanSpec      `json:"port_scan,omitempty"`
	SubdomainEnum *SubdomainEnumSpec `json:"subdomain_enum,omitempty"`
	PathEnum      *PathEnumSpec      `json:"path_enum,omitempty"`
}

type PingSpec struct {
	Host string `json:"host"`
}

type PortScanSpec struct {
	Host           string   `json:"host"`
	TimingTemplate int      `json:"timing_template"`
	Options        []string `json:"options,omitempty"`
	AllPorts       bool     `json:"all_ports"`
	PortsRange     []int    `json:"ports_range,omitempty"`
	PortsSpecific  []int    `json:"ports_specific,omitempty"`
}

type SubdomainEnumSpec struct {
	Domain   string `json:"domain"`
	Threads  int    `json:"threads"`
	Wordlist int    `json:"wordlist"`
}

type PathEnumSpec struct {
	URL           string `json:"url"`
	Threads       int    `json:"threads"`
	Wordlist      int    `json:"wordlist"`
	ExcludeStatus []int  `json:"exclude_status"`
}

// PingRequest is the boundary payload for a ping job.
type PingRequest struct {
	Host string `json:"host"`
}

// PortScanRequest is the boundary payload for an nmap job. Pointer fields
// distinguish "omitted" (default applies) from an explicit value.
type PortScanRequest struct {
	Host           string   `json:"host"`
	TimingTemplate *int     `json:"timing_template,omitempty"`
	Options        []string `json:"options,omitempty"`
	AllPorts       bool     `json:"all_ports"`
	PortsRange     []int    `json:"ports_range,omitempty"`
	PortsSpecific  []int    `json:"ports_specific,omitempty"`
}

// SubdomainEnumRequest is the boundary payload for a DNS enumeration job.
type SubdomainEnumRequest struct {
	Domain   string `json:"domain"`
	Threads  *int   `json:"threads,omitempty"`
	Wordlist *int   `json:"wordlist,omitempty"`
}

// PathEnumRequest is the boundary payload for a directory enumeration job.
type PathEnumRequest struct {
	URL           string `json:"url"`
	Threads       *int   `json:"threads,omitempty"`
	Wordlist      *int   `json:"wordlist,omitempty"`
	ExcludeStatus []int  `json:"exclude_status,omitempty"`
}

// SubmitRequest carries one kind-specific request.
type SubmitRequest struct {
	Kind          JobKind
	Ping          *PingRequest
	PortScan      *PortScanRequest
	SubdomainEnum *SubdomainEnumRequest
	PathEnum      *PathEnumRequest
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
