package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// Tools locates the external executables and wordlist files.
type Tools struct {
	PingPath     string
	PingCount    int
	NmapPath     string
	GobusterPath string

	// Wordlist selector → file path.
	SubdomainWordlists map[int]string
	PathWordlists      map[int]string
}

// BuildCommand returns the argument vector for a validated spec.
func BuildCommand(spec domain.JobSpec, tools Tools) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch spec.Kind {
	case domain.KindPing:
		count := tools.PingCount
		if count <= 0 {
			count = 4
		}
		return []string{tools.PingPath, "-c", strconv.Itoa(count), spec.Ping.Host}, nil

	case domain.KindPortScan:
		p := spec.PortScan
		argv := []string{tools.NmapPath, fmt.Sprintf("-T%d", p.TimingTemplate)}
		argv = append(argv, p.Options...)
		if ports := portArg(p); ports != "" {
			argv = append(argv, ports)
		}
		return append(argv, p.Host), nil

	case domain.KindSubdomainEnum:
		p := spec.SubdomainEnum
		wordlist, ok := tools.SubdomainWordlists[p.Wordlist]
		if !ok || wordlist == "" {
			return nil, fmt.Errorf("no subdomain wordlist configured for selector %d", p.Wordlist)
		}
		return []string{
			tools.GobusterPath, "dns",
			"-d", p.Domain,
			"-t", strconv.Itoa(p.Threads),
			"-w", wordlist,
			"--no-color",
		}, nil

	case domain.KindPathEnum:
		p := spec.PathEnum
		wordlist, ok := tools.PathWordlists[p.Wordlist]
		if !ok || wordlist == "" {
			return nil, fmt.Errorf("no path wordlist configured for selector %d", p.Wordlist)
		}
		codes := make([]string, len(p.ExcludeStatus))
		for i, c := range p.ExcludeStatus {
			codes[i] = strconv.Itoa(c)
		}
		return []string{
			tools.GobusterPath, "dir",
			"-u", p.URL,
			"-t", strconv.Itoa(p.Threads),
			"-w", wordlist,
			"-b", strings.Join(codes, ","),
			"--no-color",
		}, nil
	}

	return nil, fmt.Errorf("unsupported job kind %q", spec.Kind)
}

// portArg renders the nmap port selection: "-p-" for every port, otherwise
// "-p<lo>-<hi>,<a>,<b>". Empty means nmap's default port set.
func portArg(p *domain.PortScanSpec) string {
	if p.AllPorts {
		return "-p-"
	}
	var parts []string
	if len(p.PortsRange) == 2 {
		parts = append(parts, fmt.Sprintf("%d-%d", p.PortsRange[0], p.PortsRange[1]))
	}
	for _, port := range p.PortsSpecific {
		parts = append(parts, strconv.Itoa(port))
	}
	if len(parts) == 0 {
		return ""
	}
	return "-p" + strings.Join(parts, ",")
}
