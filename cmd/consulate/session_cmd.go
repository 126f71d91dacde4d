package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/consulate/api"
	"pkt.systems/consulate/client"
)

func newSessionCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}
	cmd.AddCommand(
		newSessionCreateCommand(cli),
		newSessionDestroyCommand(cli),
		newSessionRenewCommand(cli),
		newSessionInfoCommand(cli),
		newSessionListCommand(cli),
	)
	return cmd
}

func newSessionCreateCommand(cli *cliConfig) *cobra.Command {
	var req api.SessionRequest
	var ttl, lockDelay time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl > 0 {
				req.TTL = ttl.String()
			}
			if cmd.Flags().Changed("lock-delay") {
				req.LockDelay = lockDelay.String()
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				id, err := c.Sessions().Create(ctx, req, opts)
				if err != nil {
					return err
				}
				return render(cmd, api.SessionCreated{ID: id}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, id)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "human readable session name")
	cmd.Flags().StringVar(&req.Node, "node", "", "node the session belongs to (agent's node when empty)")
	cmd.Flags().StringVar(&req.Behavior, "behavior", api.SessionBehaviorRelease, "what happens to held locks on invalidation (release|delete)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "session TTL between 10s and 24h (none when zero)")
	cmd.Flags().DurationVar(&lockDelay, "lock-delay", 15*time.Second, "how long released locks stay unavailable")
	return cmd
}

func newSessionDestroyCommand(cli *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <id>",
		Short: "Destroy a session, releasing or deleting the keys it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.Sessions().Destroy(ctx, args[0], opts); err != nil {
					return err
				}
				return render(cmd, map[string]string{"destroyed": args[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "destroyed %s\n", args[0])
					return err
				})
			})
		},
	}
}

func newSessionRenewCommand(cli *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "renew <id>",
		Short: "Reset a session's TTL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				entry, err := c.Sessions().Renew(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return render(cmd, entry, func(w io.Writer) error {
					return writeSessions(w, []api.SessionEntry{entry})
				})
			})
		},
	}
}

func newSessionInfoCommand(cli *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				entry, _, err := c.Sessions().Info(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return render(cmd, entry, func(w io.Writer) error {
					return writeSessions(w, []api.SessionEntry{entry})
				})
			})
		},
	}
}

func newSessionListCommand(cli *cliConfig) *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, optionally for one node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				var entries []api.SessionEntry
				var err error
				if node != "" {
					entries, _, err = c.Sessions().Node(ctx, node, opts)
				} else {
					entries, _, err = c.Sessions().List(ctx, opts)
				}
				if err != nil {
					return err
				}
				return render(cmd, entries, func(w io.Writer) error {
					return writeSessions(w, entries)
				})
			})
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "only sessions of this node")
	return cmd
}

func writeSessions(w io.Writer, entries []api.SessionEntry) error {
	for _, s := range entries {
		ttl := s.TTL
		if ttl == "" {
			ttl = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\tnode=%s\tname=%s\tbehavior=%s\tttl=%s\tlock-delay=%s\n",
			s.ID, s.Node, s.Name, s.Behavior, ttl, s.LockDelay); err != nil {
			return err
		}
	}
	return nil
}
