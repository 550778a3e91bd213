package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/unkn0wn-root/memocache"
	"github.com/unkn0wn-root/memocache/codec"
	"github.com/unkn0wn-root/memocache/config"
)

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "memocache",
		Usage:     "inspect and maintain memoization caches",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to memocache.yaml",
				Sources: cli.NewValueSourceChain(cli.EnvVar("MEMOCACHE_CONFIG")),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "artifact directory (file provider); overrides the config",
			},
		},
		Commands: []*cli.Command{
			namesCommand(),
			propsCommand(),
			statsCommand(),
			perfCommand(),
			showCommand(),
			resetCommand(),
			flushCommand(),
			keyCommand(),
		},
	}
}

// withRegistry opens a Registry from the config and runs fn with it.
func withRegistry(ctx context.Context, cmd *cli.Command, fn func(*memocache.Registry) error) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if d := cmd.String("dir"); d != "" {
		cfg.Dir = d
	}
	opts, zl, err := cfg.Options(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	r, err := memocache.New(ctx, opts)
	if err != nil {
		_ = opts.Provider.Close(ctx)
		return err
	}
	defer func() { _ = r.Close(ctx) }()
	return fn(r)
}

func out(cmd *cli.Command) io.Writer { return cmd.Root().Writer }

func needArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() != n {
		return fmt.Errorf("%s: want %d argument(s), got %d (usage: %s)", cmd.Name, n, cmd.Args().Len(), cmd.ArgsUsage)
	}
	return nil
}

// namesOrAll returns the command's arguments, or every known name.
func namesOrAll(cmd *cli.Command, r *memocache.Registry) []string {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice()
	}
	return r.Names()
}

func namesCommand() *cli.Command {
	return &cli.Command{
		Name:  "names",
		Usage: "list known caches with format, entries and artifact size",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				for _, name := range r.Names() {
					f, ok := r.Format(name)
					if !ok {
						fmt.Fprintf(out(cmd), "%s\t-\t(no storage format)\n", name)
						continue
					}
					size, stored, err := r.ArtifactSize(ctx, name)
					if err != nil {
						return err
					}
					art, _ := r.Artifact(name)
					if !stored {
						fmt.Fprintf(out(cmd), "%s\t%s\t%s\tabsent\n", name, f, art)
						continue
					}
					cache, err := r.GetCache(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out(cmd), "%s\t%s\t%s\t%s entries\t%s\n",
						name, f, art, humanize.Comma(int64(len(cache))), humanize.Bytes(uint64(size)))
				}
				return nil
			})
		},
	}
}

func propsCommand() *cli.Command {
	return &cli.Command{
		Name:  "props",
		Usage: "read and write cache properties",
		Commands: []*cli.Command{
			{
				Name:      "get",
				ArgsUsage: "<scope> <name> <key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := needArgs(cmd, 3); err != nil {
						return err
					}
					a := cmd.Args()
					return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
						v, ok, err := r.GetProperty(memocache.Scope(a.Get(0)), a.Get(1), a.Get(2))
						if err != nil {
							return err
						}
						if !ok {
							fmt.Fprintln(out(cmd), "<unset>")
							return nil
						}
						fmt.Fprintln(out(cmd), v)
						return nil
					})
				},
			},
			{
				Name:      "set",
				ArgsUsage: "<scope> <name> <key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := needArgs(cmd, 4); err != nil {
						return err
					}
					a := cmd.Args()
					scope := memocache.Scope(a.Get(0))
					var value any = a.Get(3)
					if scope == memocache.ScopeUser {
						b, err := strconv.ParseBool(a.Get(3))
						if err != nil {
							return fmt.Errorf("props set: %s wants true/false: %w", a.Get(2), err)
						}
						value = b
					}
					return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
						return r.SetProperty(ctx, scope, a.Get(1), a.Get(2), value)
					})
				},
			},
			{
				Name:      "show",
				ArgsUsage: "<scope> <name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := needArgs(cmd, 2); err != nil {
						return err
					}
					return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
						props, err := r.Properties(memocache.Scope(cmd.Args().Get(0)), cmd.Args().Get(1))
						if err != nil {
							return err
						}
						return printJSON(cmd, props, "")
					})
				},
			},
			{
				Name:      "reset",
				ArgsUsage: "<scope>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := needArgs(cmd, 1); err != nil {
						return err
					}
					return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
						return r.ResetProperties(ctx, memocache.Scope(cmd.Args().Get(0)))
					})
				},
			},
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "print perf counters",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				for _, name := range namesOrAll(cmd, r) {
					// counters live in the process that made the calls; a fresh
					// process only knows whether perf is switched on
					line := r.GetPerfStats(name)
					if line == "" {
						v, _, _ := r.GetProperty(memocache.ScopeUser, name, memocache.PropEnablePerf)
						line = fmt.Sprintf("%s: perf never enabled (enable_perf=%v)", memocache.CanonicalName(name), v)
					}
					fmt.Fprintln(out(cmd), line)
				}
				return nil
			})
		},
	}
}

func perfCommand() *cli.Command {
	toggle := func(on bool) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			if err := needArgs(cmd, 1); err != nil {
				return err
			}
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				if on {
					return r.EnablePerf(ctx, cmd.Args().First())
				}
				return r.DisablePerf(ctx, cmd.Args().First())
			})
		}
	}
	return &cli.Command{
		Name:  "perf",
		Usage: "switch perf counting for a cache",
		Commands: []*cli.Command{
			{Name: "enable", ArgsUsage: "<name>", Action: toggle(true)},
			{Name: "disable", ArgsUsage: "<name>", Action: toggle(false)},
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "print a cache's entries as JSON",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "gjson path to select from the entries",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := needArgs(cmd, 1); err != nil {
				return err
			}
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				cache, err := r.GetCache(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				return printJSON(cmd, cache, cmd.String("path"))
			})
		},
	}
}

func printJSON(cmd *cli.Command, v map[string]any, path string) error {
	b, err := codec.JSON[map[string]any]{Indent: "  "}.Encode(v)
	if err != nil {
		return err
	}
	if path != "" {
		res := gjson.GetBytes(b, path)
		if !res.Exists() {
			return fmt.Errorf("show: nothing at path %q", path)
		}
		fmt.Fprintln(out(cmd), res.String())
		return nil
	}
	fmt.Fprintln(out(cmd), string(b))
	return nil
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "delete cached entries",
		ArgsUsage: "<name> | --all",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "reset every known cache"},
			&cli.BoolFlag{Name: "disk-only", Usage: "delete the artifact only; fails if absent"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			all := cmd.Bool("all")
			if all == (cmd.Args().Len() == 1) || cmd.Args().Len() > 1 {
				return fmt.Errorf("reset: give exactly one of <name> or --all")
			}
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				switch {
				case all:
					return r.ResetAll(ctx)
				case cmd.Bool("disk-only"):
					return r.ResetDisk(ctx, cmd.Args().First())
				default:
					return r.ResetCache(ctx, cmd.Args().First())
				}
			})
		},
	}
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:      "flush",
		Usage:     "load and rewrite artifacts, validating them",
		ArgsUsage: "[name...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRegistry(ctx, cmd, func(r *memocache.Registry) error {
				for _, name := range namesOrAll(cmd, r) {
					if _, ok := r.Format(name); !ok {
						continue
					}
					if _, err := r.GetCache(ctx, name); err != nil {
						return err
					}
				}
				return r.FlushAll(ctx)
			})
		},
	}
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the cache key of a JSON argument document",
		ArgsUsage: "<json>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "argument names left out of the key"},
			&cli.BoolFlag{Name: "hash", Usage: "print the xxhash64 digest instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := needArgs(cmd, 1); err != nil {
				return err
			}
			k, err := memocache.KeyFromJSON([]byte(cmd.Args().First()), cmd.StringSlice("exclude"), cmd.Bool("positional"), cmd.Bool("hash"))
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}
			fmt.Fprintln(out(cmd), k)
			return nil
		},
	}
}
