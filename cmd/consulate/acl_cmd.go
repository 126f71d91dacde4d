package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkt.systems/consulate/api"
	"pkt.systems/consulate/client"
)

func newACLCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Inspect ACL tokens, policies and roles",
	}
	cmd.AddCommand(
		newACLTokenCommand(cli),
		newACLPolicyCommand(cli),
		newACLRoleCommand(cli),
	)
	return cmd
}

func newACLTokenCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect ACL tokens",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tokens",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					tokens, _, err := c.ACL().Tokens.List(ctx, opts)
					if err != nil {
						return err
					}
					return render(cmd, tokens, func(w io.Writer) error {
						for _, t := range tokens {
							if _, err := fmt.Fprintf(w, "%s\t%s\tpolicies=%s\tcreated %s\n",
								t.AccessorID, t.Description, linkNames(t.Policies), humanize.Time(t.CreateTime)); err != nil {
								return err
							}
						}
						return nil
					})
				})
			},
		},
		&cobra.Command{
			Use:   "self",
			Short: "Show the token this client authenticates with",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					token, err := c.ACL().TokenSelf(ctx, opts)
					if err != nil {
						return err
					}
					return render(cmd, token, func(w io.Writer) error {
						return writeToken(w, token)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "read <accessor-id>",
			Short: "Show one token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					token, _, err := c.ACL().Tokens.Read(ctx, args[0], opts)
					if err != nil {
						return err
					}
					return render(cmd, token, func(w io.Writer) error {
						return writeToken(w, token)
					})
				})
			},
		},
	)
	return cmd
}

func newACLPolicyCommand(cli *cliConfig) *cobra.Command {
	var byName bool
	read := &cobra.Command{
		Use:   "read <id|name>",
		Short: "Show one policy including its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				var policy api.ACLPolicy
				var err error
				if byName {
					policy, _, err = c.ACL().Policies.ReadByName(ctx, args[0], opts)
				} else {
					policy, _, err = c.ACL().Policies.Read(ctx, args[0], opts)
				}
				if err != nil {
					return err
				}
				return render(cmd, policy, func(w io.Writer) error {
					if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", policy.ID, policy.Name, policy.Description); err != nil {
						return err
					}
					if policy.Rules == "" {
						return nil
					}
					_, err := fmt.Fprintln(w, strings.TrimRight(policy.Rules, "\n"))
					return err
				})
			})
		},
	}
	read.Flags().BoolVar(&byName, "name", false, "treat the argument as a policy name")

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect ACL policies",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List policies",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := queryOptions()
				if err != nil {
					return err
				}
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					policies, _, err := c.ACL().Policies.List(ctx, opts)
					if err != nil {
						return err
					}
					return render(cmd, policies, func(w io.Writer) error {
						for _, p := range policies {
							if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Description); err != nil {
								return err
							}
						}
						return nil
					})
				})
			},
		},
		read,
	)
	return cmd
}

func newACLRoleCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect ACL roles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				roles, _, err := c.ACL().Roles.List(ctx, opts)
				if err != nil {
					return err
				}
				return render(cmd, roles, func(w io.Writer) error {
					for _, r := range roles {
						if _, err := fmt.Fprintf(w, "%s\t%s\tpolicies=%s\n", r.ID, r.Name, linkNames(r.Policies)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	})
	return cmd
}

func writeToken(w io.Writer, t api.ACLToken) error {
	_, err := fmt.Fprintf(w, "accessor=%s\tdescription=%s\tpolicies=%s\troles=%s\tlocal=%t\tcreated %s\n",
		t.AccessorID, t.Description, linkNames(t.Policies), linkNames(t.Roles), t.Local, humanize.Time(t.CreateTime))
	return err
}

func linkNames(links []api.ACLLink) string {
	if len(links) == 0 {
		return "-"
	}
	names := make([]string, 0, len(links))
	for _, l := range links {
		if l.Name != "" {
			names = append(names, l.Name)
		} else {
			names = append(names, l.ID)
		}
	}
	return strings.Join(names, ",")
}

func newStatusCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show raft leader and peers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "leader",
			Short: "Print the raft leader address",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					leader, err := c.Status().Leader(ctx)
					if err != nil {
						return err
					}
					return render(cmd, map[string]string{"leader": leader}, func(w io.Writer) error {
						_, err := fmt.Fprintln(w, leader)
						return err
					})
				})
			},
		},
		&cobra.Command{
			Use:   "peers",
			Short: "Print the raft peer addresses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
					peers, err := c.Status().Peers(ctx)
					if err != nil {
						return err
					}
					return render(cmd, peers, func(w io.Writer) error {
						return writeLines(w, peers)
					})
				})
			},
		},
	)
	return cmd
}
