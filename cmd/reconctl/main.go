// Command reconctl submits, inspects, and cancels recon jobs through the
// motegao API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Jackyzaz/motegao/internal/domain"
)

var (
	flagAPI     string
	flagTimeout time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "reconctl:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "reconctl",
		Short:         "Operate recon jobs on a motegao server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPI := "http://localhost:8080"
	if v, ok := os.LookupEnv("MOTEGAO_API"); ok {
		defaultAPI = v
	}
	root.PersistentFlags().StringVar(&flagAPI, "api", defaultAPI, "base URL of the motegao API (env MOTEGAO_API)")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "timeout for a single API request")

	root.AddCommand(newSubmitCmd(out), newStatusCmd(out), newCancelCmd(out), newWatchCmd(out))
	root.SetOut(out)
	return root
}

func client() (*apiClient, error) {
	return newAPIClient(flagAPI, &http.Client{Timeout: flagTimeout})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSubmitCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a recon job and print its ID",
	}

	submit := func(command string, body any) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			cl, err := client()
			if err != nil {
				return err
			}
			resp, err := cl.submit(c.Context(), command, body)
			if err != nil {
				return err
			}
			return printJSON(out, resp)
		}
	}

	var ping domain.PingRequest
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping a host",
		RunE:  submit("ping", &ping),
	}
	pingCmd.Flags().StringVar(&ping.Host, "host", "", "target host")
	_ = pingCmd.MarkFlagRequired("host")

	var (
		scan      domain.PortScanRequest
		timing    int
		portRange string
	)
	nmapCmd := &cobra.Command{
		Use:   "nmap",
		Short: "Scan ports on a host",
		PreRunE: func(c *cobra.Command, _ []string) error {
			if c.Flags().Changed("timing") {
				scan.TimingTemplate = &timing
			}
			if portRange == "" {
				return nil
			}
			r, err := parseRange(portRange)
			if err != nil {
				return err
			}
			scan.PortsRange = r
			return nil
		},
		RunE: submit("nmap", &scan),
	}
	nmapCmd.Flags().StringVar(&scan.Host, "host", "", "target host")
	nmapCmd.Flags().IntVar(&timing, "timing", domain.DefaultTimingTemplate, "timing template 0-5")
	nmapCmd.Flags().StringSliceVar(&scan.Options, "option", nil, "scan option, repeatable ("+strings.Join(domain.AllowedScanOptions, " ")+")")
	nmapCmd.Flags().BoolVar(&scan.AllPorts, "all-ports", false, "scan all 65535 ports")
	nmapCmd.Flags().StringVar(&portRange, "range", "", "port range, e.g. 1-1024")
	nmapCmd.Flags().IntSliceVar(&scan.PortsSpecific, "ports", nil, "specific ports, e.g. 80,443")
	_ = nmapCmd.MarkFlagRequired("host")

	var (
		sub                 domain.SubdomainEnumRequest
		subThreads, subList int
	)
	subCmd := &cobra.Command{
		Use:     "subdomain",
		Aliases: []string{"dns"},
		Short:   "Enumerate subdomains of a domain",
		PreRun: func(c *cobra.Command, _ []string) {
			sub.Threads = changedInt(c, "threads", &subThreads)
			sub.Wordlist = changedInt(c, "wordlist", &subList)
		},
		RunE: submit("subdomain_enum", &sub),
	}
	subCmd.Flags().StringVar(&sub.Domain, "domain", "", "domain to enumerate")
	subCmd.Flags().IntVar(&subThreads, "threads", domain.DefaultThreads, "concurrent lookups")
	subCmd.Flags().IntVar(&subList, "wordlist", domain.DefaultWordlist, "wordlist selector")
	_ = subCmd.MarkFlagRequired("domain")

	var (
		path                  domain.PathEnumRequest
		pathThreads, pathList int
	)
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Enumerate paths under a URL",
		PreRun: func(c *cobra.Command, _ []string) {
			path.Threads = changedInt(c, "threads", &pathThreads)
			path.Wordlist = changedInt(c, "wordlist", &pathList)
		},
		RunE: submit("path_enum", &path),
	}
	pathCmd.Flags().StringVar(&path.URL, "url", "", "base URL (http or https)")
	pathCmd.Flags().IntVar(&pathThreads, "threads", domain.DefaultThreads, "concurrent requests")
	pathCmd.Flags().IntVar(&pathList, "wordlist", domain.DefaultWordlist, "wordlist selector")
	pathCmd.Flags().IntSliceVar(&path.ExcludeStatus, "exclude", nil, "status codes to hide (default 404)")
	_ = pathCmd.MarkFlagRequired("url")

	cmd.AddCommand(pingCmd, nmapCmd, subCmd, pathCmd)
	return cmd
}

// changedInt returns v only if the flag was set, so the server applies its
// own default otherwise.
func changedInt(c *cobra.Command, name string, v *int) *int {
	if c.Flags().Changed(name) {
		return v
	}
	return nil
}

func parseRange(s string) ([]int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("port range %q must look like LOW-HIGH", s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("port range %q: %w", s, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("port range %q: %w", s, err)
	}
	return []int{a, b}, nil
}

func jobIDArg(args []string) (uuid.UUID, error) {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id %q", args[0])
	}
	return id, nil
}

func newStatusCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Print the current state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := jobIDArg(args)
			if err != nil {
				return err
			}
			cl, err := client()
			if err != nil {
				return err
			}
			st, err := cl.status(c.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(out, st)
		},
	}
}

func newCancelCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a job and print its resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := jobIDArg(args)
			if err != nil {
				return err
			}
			cl, err := client()
			if err != nil {
				return err
			}
			st, err := cl.cancel(c.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(out, st)
		},
	}
}

func newWatchCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Follow a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := jobIDArg(args)
			if err != nil {
				return err
			}
			cl, err := client()
			if err != nil {
				return err
			}
			return cl.watch(c.Context(), id, func(st *domain.JobState) error {
				_, err := fmt.Fprintf(out, "%s %-9s %6.2f%% %s\n",
					st.UpdatedAt.Format(time.RFC3339), st.Status, st.Progress, summarize(st))
				return err
			})
		},
	}
}

func summarize(st *domain.JobState) string {
	switch {
	case st.Error != "":
		return st.Error
	case len(st.Result.Subdomains) > 0:
		return fmt.Sprintf("%d subdomains", len(st.Result.Subdomains))
	case len(st.Result.Paths) > 0:
		return fmt.Sprintf("%d paths", len(st.Result.Paths))
	}
	return ""
}
