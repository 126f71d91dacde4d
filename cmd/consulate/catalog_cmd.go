package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"pkt.systems/consulate/api"
	"pkt.systems/consulate/client"
	"pkt.systems/consulate/query"
)

func newCatalogCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse datacenters, nodes and services",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "datacenters",
			Short: "List known datacenters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					dcs, err := c.Catalog().Datacenters(ctx)
					if err != nil {
						return err
					}
					return render(cmd, dcs, func(w io.Writer) error {
						return writeLines(w, dcs)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "nodes",
			Short: "List catalog nodes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					nodes, _, err := c.Catalog().Nodes(ctx, opts)
					if err != nil {
						return err
					}
					return render(cmd, nodes, func(w io.Writer) error {
						for _, n := range nodes {
							if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", n.Node, n.Address, n.Datacenter); err != nil {
								return err
							}
						}
						return nil
					})
				})
			},
		},
		&cobra.Command{
			Use:   "services",
			Short: "List service names and their tags",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					services, _, err := c.Catalog().Services(ctx, opts)
					if err != nil {
						return err
					}
					return render(cmd, services, func(w io.Writer) error {
						names := make([]string, 0, len(services))
						for name := range services {
							names = append(names, name)
						}
						sort.Strings(names)
						for _, name := range names {
							if _, err := fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(services[name], ",")); err != nil {
								return err
							}
						}
						return nil
					})
				})
			},
		},
		newCatalogServiceCommand(cli),
	)
	return cmd
}

func newCatalogServiceCommand(cli *cliConfig) *cobra.Command {
	var pf policyFlags
	var tag string
	cmd := &cobra.Command{
		Use:   "service <name>",
		Short: "List the instances of a service under a resolution policy",
		Example: `  consulate catalog service web
  consulate catalog service web --not-found wait --wait 2m
  consulate catalog service web --found wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := pf.policy(true)
			if err != nil {
				return err
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				snap, err := c.Catalog().WatchService(ctx, args[0], tag, policy, pf.wait, opts)
				if err != nil {
					return err
				}
				return render(cmd, snap.Entries, func(w io.Writer) error {
					for _, s := range snap.Entries {
						addr := s.ServiceAddress
						if addr == "" {
							addr = s.Address
						}
						if _, err := fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\n", s.Node, s.ServiceID, addr, s.ServicePort, strings.Join(s.ServiceTags, ",")); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	addPolicyFlags(cmd, &pf, query.FoundReturn)
	cmd.Flags().StringVar(&tag, "tag", "", "only instances carrying this tag")
	return cmd
}

func newHealthCommand(cli *cliConfig) *cobra.Command {
	var tag string
	var passing bool
	service := &cobra.Command{
		Use:   "service <name>",
		Short: "Show service instances with their checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				entries, _, err := c.Health().Service(ctx, args[0], tag, passing, opts)
				if err != nil {
					return err
				}
				return render(cmd, entries, func(w io.Writer) error {
					for _, e := range entries {
						var node, id string
						if e.Node != nil {
							node = e.Node.Node
						}
						if e.Service != nil {
							id = e.Service.ID
						}
						if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", node, id, e.Checks.AggregatedStatus()); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	service.Flags().StringVar(&tag, "tag", "", "only instances carrying this tag")
	service.Flags().BoolVar(&passing, "passing", false, "only instances whose checks all pass")

	checksCommand := func(use, short string, fetch func(ctx context.Context, c *client.Client, arg string, opts query.Options) (api.HealthChecks, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					checks, err := fetch(ctx, c, args[0], opts)
					if err != nil {
						return err
					}
					return render(cmd, checks, func(w io.Writer) error {
						return writeChecks(w, checks)
					})
				})
			},
		}
	}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query health checks",
	}
	cmd.AddCommand(
		service,
		checksCommand("node <node>", "Show the checks of a node", func(ctx context.Context, c *client.Client, node string, opts query.Options) (api.HealthChecks, error) {
			checks, _, err := c.Health().Node(ctx, node, opts)
			return checks, err
		}),
		checksCommand("checks <service>", "Show the checks of a service", func(ctx context.Context, c *client.Client, svc string, opts query.Options) (api.HealthChecks, error) {
			checks, _, err := c.Health().Checks(ctx, svc, opts)
			return checks, err
		}),
		checksCommand("state <passing|warning|critical|any>", "Show checks in a state", func(ctx context.Context, c *client.Client, state string, opts query.Options) (api.HealthChecks, error) {
			checks, _, err := c.Health().State(ctx, state, opts)
			return checks, err
		}),
	)
	return cmd
}

func writeChecks(w io.Writer, checks api.HealthChecks) error {
	for _, ch := range checks {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ch.Node, ch.CheckID, ch.Status, ch.ServiceName); err != nil {
			return err
		}
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
