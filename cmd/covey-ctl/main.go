// cmd/covey-ctl/main.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// covey-ctl is an operator CLI for a running fleet manager. It registers
// as a short-lived application client, runs one command, and unregisters.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/covey-uas/covey/client"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
)

var (
	crmAddr  string
	asJSON   bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "covey-ctl",
	Short:         "Inspect and steer a covey fleet manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&crmAddr, "crm", "localhost:5000", "fleet manager address (host:port)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "output JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "warn", "logging level: debug, info, warn, error")

	rootCmd.AddCommand(clientsCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(launchCmd())
	rootCmd.AddCommand(handoverCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withCRM registers a throwaway application client for the duration of fn.
func withCRM(fn func(crm *client.CRM) error) error {
	lg := log.New(true, logLevel, "")
	crm, err := client.DialCRM(crmAddr, lg)
	if err != nil {
		return fmt.Errorf("%s: %w", crmAddr, err)
	}
	if _, err := crm.Register(manager.KindApplication, "covey-ctl", "operator CLI", nil, "", 0, ""); err != nil {
		return err
	}
	defer func() { _ = crm.Unregister() }()
	return fn(crm)
}

func clientsCmd() *cobra.Command {
	var kind, id string
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				recs, err := crm.Clients(manager.Filter{Kind: manager.ClientKind(kind), ID: id})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(recs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "KIND", "NAME", "OWNER", "ADDRESS", "LAST SEEN"})
				for _, r := range recs {
					addr := ""
					if r.Attached() {
						addr = fmt.Sprintf("%s:%d", r.Addr, r.Port)
					}
					tw.AppendRow(table.Row{r.ID, r.Kind, r.Name, r.Owner, addr,
						r.LastSeen.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind: dss, da, dsa")
	cmd.Flags().StringVar(&id, "id", "", "filter by id substring")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show manager identity and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				info, err := crm.GetInfo()
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(info)
				}
				fmt.Printf("%s %s\n", info.ID, info.Version)
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evict clients that stopped heartbeating",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				evicted, err := crm.DelStaleClients()
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(evicted)
				}
				if len(evicted) == 0 {
					fmt.Println("no stale clients")
					return nil
				}
				for _, id := range evicted {
					fmt.Println(id)
				}
				return nil
			})
		},
	}
}

func launchCmd() *cobra.Command {
	var aircraft string
	cmd := &cobra.Command{
		Use:   "launch <app>",
		Short: "Launch a support application on the manager host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				id, err := crm.LaunchApp(args[0], aircraft)
				if err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&aircraft, "aircraft", "", "aircraft id for the app to attend to")
	return cmd
}

func handoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handover <aircraft-id> <new-owner-id>",
		Short: "Move an aircraft to another owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				// Only the owner may hand over, so take the aircraft first.
				// Fails with "resource busy" if another client holds it.
				if _, err := crm.GetDrone(nil, args[0]); err != nil {
					return err
				}
				return crm.Handover(args[0], args[1])
			})
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <aircraft-id>",
		Short: "Acquire and immediately release an aircraft to verify it responds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				if _, err := crm.GetDrone(nil, args[0]); err != nil {
					return err
				}
				return crm.ReleaseDrone(args[0])
			})
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll and print registry events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCRM(func(crm *client.CRM) error {
				for {
					events, err := crm.GetUpdates()
					if err != nil {
						return err
					}
					for _, ev := range events {
						if asJSON {
							if err := printJSON(ev); err != nil {
								return err
							}
							continue
						}
						fmt.Printf("%s %s owner=%s\n", ev.Type, ev.Client.ID, ev.Client.Owner)
					}
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(interval):
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
