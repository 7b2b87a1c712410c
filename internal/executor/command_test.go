package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jackyzaz/motegao/internal/domain"
)

func testTools() Tools {
	return Tools{
		PingPath:     "/bin/ping",
		PingCount:    4,
		NmapPath:     "/usr/bin/nmap",
		GobusterPath: "/usr/bin/gobuster",
		SubdomainWordlists: map[int]string{
			1: "/wordlists/dns-small.txt",
		},
		PathWordlists: map[int]string{
			1: "/wordlists/common.txt",
			2: "/wordlists/big.txt",
		},
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name string
		spec domain.JobSpec
		want []string
	}{
		{
			name: "ping",
			spec: domain.JobSpec{Kind: domain.KindPing, Ping: &domain.PingSpec{Host: "10.0.0.1"}},
			want: []string{"/bin/ping", "-c", "4", "10.0.0.1"},
		},
		{
			name: "nmap default ports",
			spec: domain.JobSpec{Kind: domain.KindPortScan, PortScan: &domain.PortScanSpec{
				Host: "scanme.nmap.org", TimingTemplate: 3,
			}},
			want: []string{"/usr/bin/nmap", "-T3", "scanme.nmap.org"},
		},
		{
			name: "nmap all ports with options",
			spec: domain.JobSpec{Kind: domain.KindPortScan, PortScan: &domain.PortScanSpec{
				Host: "scanme.nmap.org", TimingTemplate: 4, Options: []string{"-sV", "--open"}, AllPorts: true,
			}},
			want: []string{"/usr/bin/nmap", "-T4", "-sV", "--open", "-p-", "scanme.nmap.org"},
		},
		{
			name: "nmap range and list",
			spec: domain.JobSpec{Kind: domain.KindPortScan, PortScan: &domain.PortScanSpec{
				Host: "10.0.0.1", TimingTemplate: 0, PortsRange: []int{1, 1024}, PortsSpecific: []int{8080, 8443},
			}},
			want: []string{"/usr/bin/nmap", "-T0", "-p1-1024,8080,8443", "10.0.0.1"},
		},
		{
			name: "gobuster dns",
			spec: domain.JobSpec{Kind: domain.KindSubdomainEnum, SubdomainEnum: &domain.SubdomainEnumSpec{
				Domain: "example.com", Threads: 10, Wordlist: 1,
			}},
			want: []string{"/usr/bin/gobuster", "dns", "-d", "example.com", "-t", "10", "-w", "/wordlists/dns-small.txt", "--no-color"},
		},
		{
			name: "gobuster dir",
			spec: domain.JobSpec{Kind: domain.KindPathEnum, PathEnum: &domain.PathEnumSpec{
				URL: "https://example.com", Threads: 20, Wordlist: 2, ExcludeStatus: []int{404, 500},
			}},
			want: []string{"/usr/bin/gobuster", "dir", "-u", "https://example.com", "-t", "20", "-w", "/wordlists/big.txt", "-b", "404,500", "--no-color"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildCommand(tt.spec, testTools())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCommand_DefaultPingCount(t *testing.T) {
	tools := testTools()
	tools.PingCount = 0
	got, err := BuildCommand(domain.JobSpec{Kind: domain.KindPing, Ping: &domain.PingSpec{Host: "h"}}, tools)
	require.NoError(t, err)
	require.Equal(t, "4", got[2])
}

func TestBuildCommand_MissingWordlist(t *testing.T) {
	spec := domain.JobSpec{Kind: domain.KindPathEnum, PathEnum: &domain.PathEnumSpec{
		URL: "https://example.com", Threads: 10, Wordlist: 5, ExcludeStatus: []int{404},
	}}
	_, err := BuildCommand(spec, testTools())
	require.Error(t, err)
	require.Contains(t, err.Error(), "selector 5")
}

func TestBuildCommand_RejectsInvalidSpec(t *testing.T) {
	spec := domain.JobSpec{Kind: domain.KindPortScan, PortScan: &domain.PortScanSpec{
		Host: "h", Options: []string{"--script=evil"},
	}}
	_, err := BuildCommand(spec, testTools())
	require.True(t, errors.Is(err, domain.ErrInvalidSpec))
}
