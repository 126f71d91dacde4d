package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/consulate"
	"pkt.systems/consulate/client"
)

func newLockCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Acquire and release session locks on keys",
	}
	cmd.AddCommand(
		newLockAcquireCommand(cli),
		newLockReleaseCommand(cli),
		newLockHolderCommand(cli),
	)
	return cmd
}

type lockResult struct {
	Key     string `json:"key"`
	Session string `json:"session"`
	Holder  string `json:"holder,omitempty"`
}

func newLockAcquireCommand(cli *cliConfig) *cobra.Command {
	var opts client.LockOptions
	cmd := &cobra.Command{
		Use:   "acquire <key>",
		Short: "Acquire a lock, waiting while another session holds it",
		Long: `Acquire a lock, waiting while another session holds it.

Without --session a session is created with --ttl. The lock is lost when that
session expires; keep it alive with "consulate session renew" and release it
with "consulate lock release".`,
		Example: `  consulate lock acquire jobs/nightly --wait 5m
  consulate lock acquire jobs/nightly --session 3f1c... -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qopts, err := queryOptions()
			if err != nil {
				return err
			}
			opts.Options = qopts
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				lock, err := c.Locks().Lock(ctx, args[0], opts)
				if err != nil {
					return err
				}
				res := lockResult{Key: lock.Key(), Session: lock.Session(), Holder: lock.Holder()}
				return render(cmd, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "acquired %s session=%s holder=%s\n", res.Key, res.Session, res.Holder)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Session, "session", "", "lock with an existing session instead of creating one")
	cmd.Flags().DurationVar(&opts.SessionTTL, "ttl", client.DefaultLockSessionTTL, "TTL of the session created for the lock")
	cmd.Flags().StringVar(&opts.Holder, "holder", "", "value stored in the key while locked (random when empty)")
	cmd.Flags().DurationVar(&opts.Timeout, "wait", consulate.DefaultBlock, "how long to wait for the lock")
	cmd.Flags().DurationVar(&opts.RetryInterval, "retry-interval", time.Second, "pause between attempts while the lock delay is in effect")
	return cmd
}

func newLockReleaseCommand(cli *cliConfig) *cobra.Command {
	var session string
	var keepSession bool
	cmd := &cobra.Command{
		Use:   "release <key>",
		Short: "Release a lock and destroy its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				return errors.New("--session is required")
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				ok, err := c.Locks().Release(ctx, args[0], session, nil, opts)
				if err != nil {
					return err
				}
				if !ok {
					return notApplied("release", args[0], false, "", session)
				}
				if !keepSession {
					if err := c.Sessions().Destroy(ctx, session, opts); err != nil {
						return fmt.Errorf("released %s but destroying session %s failed: %w", args[0], session, err)
					}
				}
				res := lockResult{Key: args[0], Session: session}
				return render(cmd, res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "released %s\n", args[0])
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session holding the lock")
	cmd.Flags().BoolVar(&keepSession, "keep-session", false, "leave the session alive after releasing")
	return cmd
}

func newLockHolderCommand(cli *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "holder <key>",
		Short: "Show which session holds a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				session, _, err := c.Locks().Holder(ctx, args[0], opts)
				if err != nil {
					return err
				}
				res := lockResult{Key: args[0], Session: session}
				return render(cmd, res, func(w io.Writer) error {
					if session == "" {
						_, err := fmt.Fprintf(w, "%s is free\n", args[0])
						return err
					}
					_, err := fmt.Fprintf(w, "%s held by session %s\n", args[0], session)
					return err
				})
			})
		},
	}
}
