package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkt.systems/consulate"
	"pkt.systems/consulate/api"
	"pkt.systems/consulate/client"
	"pkt.systems/consulate/query"
)

func newKVCommand(cli *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write the key/value store",
	}
	cmd.AddCommand(
		newKVGetCommand(cli),
		newKVPutCommand(cli),
		newKVDeleteCommand(cli),
		newKVListCommand(cli),
		newKVWatchCommand(cli),
	)
	return cmd
}

func newKVGetCommand(cli *cliConfig) *cobra.Command {
	var pf policyFlags
	var recurse bool
	var typ string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key (or a prefix with --recurse) under a resolution policy",
		Example: `  consulate kv get app/config
  consulate kv get app/config --not-found wait --wait 2m
  consulate kv get app/ --recurse --found wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, err := parseValueType(typ)
			if err != nil {
				return err
			}
			policy, err := pf.policy(recurse)
			if err != nil {
				return err
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				if recurse {
					snap, err := c.KV().GetAll(ctx, args[0], policy, pf.wait, opts)
					if err != nil {
						return err
					}
					return render(cmd, snap.Entries, func(w io.Writer) error {
						return writeKVPairs(w, snap.Entries)
					})
				}
				pair, _, err := c.KV().Get(ctx, args[0], policy, pf.wait, opts)
				if err != nil {
					return err
				}
				return render(cmd, pair, func(w io.Writer) error {
					data, err := formatValue(pair.Value, vt)
					if err != nil {
						return err
					}
					_, err = w.Write(data)
					return err
				})
			})
		},
	}
	addPolicyFlags(cmd, &pf, query.FoundReturn)
	cmd.Flags().BoolVar(&recurse, "recurse", false, "read every key under the prefix")
	cmd.Flags().StringVar(&typ, "type", string(valueRaw), "value rendering for text output (raw|json|yaml)")
	return cmd
}

func newKVPutCommand(cli *cliConfig) *cobra.Command {
	var (
		file    string
		typ     string
		flags   uint64
		cas     uint64
		acquire string
		release string
	)
	cmd := &cobra.Command{
		Use:   "put <key> [value|-]",
		Short: "Write a key",
		Example: `  consulate kv put app/limit 10
  consulate kv put app/config --type yaml --file config.yaml
  echo '{"replicas":3}' | consulate kv put app/spec - --type json
  consulate kv put app/config --cas 0 --file defaults.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, err := parseValueType(typ)
			if err != nil {
				return err
			}
			raw, err := readValue(cmd, args[1:], file)
			if err != nil {
				return err
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cas") {
				opts.CAS = query.CAS(cas)
			}
			putOpts := client.PutOptions{Flags: flags, Acquire: acquire, Release: release, Options: opts}
			key := args[0]
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				value := raw
				if vt == valueYAML {
					converted, err := encodeValue(raw, vt)
					if err != nil {
						return err
					}
					value = converted
				}
				var ok bool
				var err error
				if vt == valueJSON {
					ok, err = c.KV().PutJSON(ctx, key, bytes.NewReader(value), putOpts)
				} else {
					ok, err = c.KV().Put(ctx, key, value, putOpts)
				}
				if err != nil {
					return err
				}
				if !ok {
					return notApplied("write", key, opts.CAS != nil, acquire, release)
				}
				result := map[string]any{"key": key, "bytes": len(value)}
				return render(cmd, result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "wrote %s (%s)\n", key, humanize.IBytes(uint64(len(value))))
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the value from a file (- for stdin)")
	cmd.Flags().StringVar(&typ, "type", string(valueRaw), "input type (raw|json|yaml); yaml is stored as JSON")
	cmd.Flags().Uint64Var(&flags, "flags", 0, "opaque 64-bit flags stored with the key")
	cmd.Flags().Uint64Var(&cas, "cas", 0, "only write if the key's modify index matches (0 creates only when absent)")
	cmd.Flags().StringVar(&acquire, "acquire", "", "acquire the key for this session")
	cmd.Flags().StringVar(&release, "release", "", "release the key held by this session")
	return cmd
}

func notApplied(op, key string, cas bool, acquire, release string) error {
	switch {
	case cas:
		return fmt.Errorf("%s %s: check-and-set index did not match", op, key)
	case acquire != "":
		return fmt.Errorf("%s %s: lock is held by another session", op, key)
	case release != "":
		return fmt.Errorf("%s %s: session %s does not hold the lock", op, key, release)
	default:
		return fmt.Errorf("%s %s: not applied", op, key)
	}
}

func newKVDeleteCommand(cli *cliConfig) *cobra.Command {
	var recurse bool
	var cas uint64
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key or, with --recurse, a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cas") {
				if recurse {
					return errors.New("--cas cannot be combined with --recurse")
				}
				opts.CAS = query.CAS(cas)
			}
			key := args[0]
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				ok, err := c.KV().Delete(ctx, key, client.DeleteOptions{Recurse: recurse, Options: opts})
				if err != nil {
					return err
				}
				if !ok {
					return notApplied("delete", key, opts.CAS != nil, "", "")
				}
				return render(cmd, map[string]any{"key": key, "recurse": recurse}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted %s\n", key)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&recurse, "recurse", false, "delete every key under the prefix")
	cmd.Flags().Uint64Var(&cas, "cas", 0, "only delete if the key's modify index matches")
	return cmd
}

func newKVListCommand(cli *cliConfig) *cobra.Command {
	var keysOnly bool
	var separator string
	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List keys under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				if keysOnly || separator != "" {
					keys, _, err := c.KV().Keys(ctx, prefix, separator, opts)
					if err != nil {
						return err
					}
					return render(cmd, keys, func(w io.Writer) error {
						return writeLines(w, keys)
					})
				}
				pairs, _, err := c.KV().List(ctx, prefix, opts)
				if err != nil {
					return err
				}
				return render(cmd, pairs, func(w io.Writer) error {
					return writeKVPairs(w, pairs)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "list key names only")
	cmd.Flags().StringVar(&separator, "separator", "", "stop listing at this separator (implies --keys)")
	return cmd
}

func newKVWatchCommand(cli *cliConfig) *cobra.Command {
	var recurse bool
	var follow bool
	var index uint64
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "watch <key>",
		Short: "Block until a key (or prefix) changes past an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions()
			if err != nil {
				return err
			}
			return cli.run(cmd, func(ctx context.Context, c *client.Client) error {
				last := index
				for {
					snap, err := c.KV().Watch(ctx, args[0], recurse, last, wait, opts)
					if err != nil {
						return err
					}
					changed := last == 0 || snap.Index != last
					last = snap.Index
					if changed {
						if err := render(cmd, snap, func(w io.Writer) error {
							if _, err := fmt.Fprintf(w, "index %d\n", snap.Index); err != nil {
								return err
							}
							return writeKVPairs(w, snap.Entries)
						}); err != nil {
							return err
						}
					}
					if !follow {
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().BoolVar(&recurse, "recurse", false, "watch every key under the prefix")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep watching until interrupted")
	cmd.Flags().Uint64Var(&index, "index", 0, "last index seen (0 returns immediately)")
	cmd.Flags().DurationVar(&wait, "wait", consulate.DefaultBlock, "longest single wait")
	return cmd
}

func writeKVPairs(w io.Writer, pairs []api.KVPair) error {
	for _, p := range pairs {
		line := fmt.Sprintf("%s\t%s\tmodify=%d", p.Key, humanize.IBytes(uint64(len(p.Value))), p.ModifyIndex)
		if p.Flags != 0 {
			line += fmt.Sprintf("\tflags=%d", p.Flags)
		}
		if p.Locked() {
			line += "\tsession=" + p.Session
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
