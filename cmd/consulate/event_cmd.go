package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkt.systems/consulate/api"
	"pkt.systems/consulate/client"
	"pkt.systems/consulate/query"
)

func newEventCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Fire and follow user events",
	}
	cmd.AddCommand(
		newEventFireCommand(cli),
		newEventGetCommand(cli),
		newEventListCommand(cli),
	)
	return cmd
}

func newEventFireCommand(cli *cliConfig) *cobra.Command {
	var file, typ string
	var filters api.EventFilters
	cmd := &cobra.Command{
		Use:   "fire <name> [payload|-]",
		Short: "Broadcast a user event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, err := parseValueType(typ)
			if err != nil {
				return err
			}
			raw, err := readValue(cmd, args[1:], file)
			if err != nil {
				return err
			}
			payload, err := encodeValue(raw, vt)
			if err != nil {
				return err
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				ev, err := c.Events().Fire(ctx, args[0], payload, filters, opts)
				if err != nil {
					return err
				}
				return render(cmd, ev, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "fired %s id=%s (%s)\n", ev.Name, ev.ID, humanize.IBytes(uint64(len(payload))))
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the payload from a file (- for stdin)")
	cmd.Flags().StringVar(&typ, "type", string(valueRaw), "payload input type (raw|json|yaml); yaml is sent as JSON")
	cmd.Flags().StringVar(&filters.Node, "node", "", "regular expression restricting delivery by node name")
	cmd.Flags().StringVar(&filters.Service, "service", "", "regular expression restricting delivery by service")
	cmd.Flags().StringVar(&filters.Tag, "tag", "", "regular expression restricting delivery by service tag (requires --service)")
	return cmd
}

func newEventGetCommand(cli *cliConfig) *cobra.Command {
	var pf policyFlags
	var cursorToken, typ string
	var follow bool
	cmd := &cobra.Command{
		Use:   "get [name]",
		Short: "Read one event relative to a cursor",
		Long: `Read one event relative to a cursor.

Cursors are :first, :last, :next or an event ID. An event ID selects the
event fired after it, so feeding each printed ID back in walks the stream.
:next selects the first event fired after the command starts and therefore
only makes sense with --not-found wait.`,
		Example: `  consulate event get deploy --cursor :last
  consulate event get deploy --cursor :next --not-found wait --wait 10m
  consulate event get deploy --cursor :next --not-found wait --follow -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			vt, err := parseValueType(typ)
			if err != nil {
				return err
			}
			cursor, err := query.ParseCursor(cursorToken)
			if err != nil {
				return err
			}
			policy, err := pf.policy(false)
			if err != nil {
				return err
			}
			if follow && (policy.NotFound != query.NotFoundWait || policy.Found != query.FoundReturn) {
				return errors.New("--follow requires --not-found wait and --found return")
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				for {
					res, err := c.Events().Get(ctx, name, cursor, policy, pf.wait, opts)
					var nf *query.NotFoundError
					if follow && errors.As(err, &nf) && nf.Expired {
						cursor = nf.Resume
						continue
					}
					if err != nil {
						return err
					}
					if err := render(cmd, res, func(w io.Writer) error {
						return writeEvent(w, res.Event, vt)
					}); err != nil {
						return err
					}
					if !follow {
						return nil
					}
					cursor = query.At(res.Cursor)
				}
			})
		},
	}
	addPolicyFlags(cmd, &pf, query.FoundReturn)
	cmd.Flags().StringVar(&cursorToken, "cursor", query.TokenLast, "cursor (:first, :last, :next or an event ID)")
	cmd.Flags().StringVar(&typ, "type", string(valueRaw), "payload rendering for text output (raw|json|yaml)")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep reading the event after each one until interrupted")
	return cmd
}

func newEventListCommand(cli *cliConfig) *cobra.Command {
	var pf policyFlags
	cmd := &cobra.Command{
		Use:   "list [name]",
		Short: "List the events the agent remembers, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			policy, err := pf.policy(true)
			if err != nil {
				return err
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				var snap query.Snapshot[api.UserEvent]
				var err error
				if cmd.Flags().Changed("not-found") || cmd.Flags().Changed("found") {
					snap, err = c.Events().GetAll(ctx, name, policy, pf.wait, opts)
				} else {
					snap, err = c.Events().List(ctx, name, opts)
				}
				if err != nil {
					return err
				}
				return render(cmd, snap.Entries, func(w io.Writer) error {
					for _, ev := range snap.Entries {
						if _, err := fmt.Fprintf(w, "%s\t%s\tltime=%d\t%s\n", ev.ID, ev.Name, ev.LTime, humanize.IBytes(uint64(len(ev.Payload)))); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	addPolicyFlags(cmd, &pf, query.FoundReturn)
	return cmd
}

func writeEvent(w io.Writer, ev api.UserEvent, vt valueType) error {
	if _, err := fmt.Fprintf(w, "id=%s name=%s ltime=%d\n", ev.ID, ev.Name, ev.LTime); err != nil {
		return err
	}
	if len(ev.Payload) == 0 {
		return nil
	}
	data, err := formatValue(ev.Payload, vt)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
