package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nidhogg/crew/internal/cache"
	"github.com/nidhogg/crew/internal/config"
	"github.com/nidhogg/crew/internal/gateway"
	pgstore "github.com/nidhogg/crew/internal/store"
)

func newRosterCmd(o *options) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print the configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := o.loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Roster()
			if err != nil {
				return err
			}
			if pretty {
				renderRoster(o.out, reg.Agents())
				return nil
			}
			enc := json.NewEncoder(o.out)
			enc.SetIndent("", "  ")
			return enc.Encode(reg.Agents())
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "render a table instead of JSON")
	return cmd
}

func newCacheCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read or write the document cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <prompt>",
			Short: "Print the cached document for a prompt",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCache(cmd.Context(), o, func(c cache.Cache) error {
					entry, err := c.Get(cmd.Context(), strings.Join(args, " "))
					if errors.Is(err, cache.ErrNotFound) {
						fmt.Fprintln(o.err, "not cached")
						return &exitError{code: 1}
					}
					if err != nil {
						return err
					}
					_, err = o.out.Write(entry.Content)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "put <prompt> <tag>",
			Short: "Store stdin as the cached document for a prompt",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				content, err := io.ReadAll(o.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				return withCache(cmd.Context(), o, func(c cache.Cache) error {
					return c.Put(cmd.Context(), args[0], content, args[1])
				})
			},
		},
	)
	return cmd
}

func withCache(ctx context.Context, o *options, fn func(cache.Cache) error) error {
	cfg, _, logger, err := o.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var st *pgstore.Store
	if cfg.Cache.Backend == "postgres" {
		if st = openStore(ctx, cfg, logger); st != nil {
			defer st.Close()
		}
	}
	c, err := openCache(ctx, cfg, st)
	if err != nil {
		return err
	}
	if c == nil {
		return errors.New("no cache backend configured (set cache.backend)")
	}
	if _, shared := c.(*pgstore.Store); !shared {
		defer c.Close()
	}
	return fn(c)
}

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow round events from the Redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := o.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return watch(cmd.Context(), o.out, cfg, logger)
		},
	}
}

func watch(ctx context.Context, w io.Writer, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Database.Redis.URL == "" {
		return errors.New("watch needs database.redis.url")
	}
	rs, err := gateway.NewRedisStream(ctx, cfg.Database.Redis.URL, cfg.Events.Redis.Stream, logger)
	if err != nil {
		return err
	}
	defer rs.Close()

	enc := json.NewEncoder(w)
	for ev := range rs.Subscribe(ctx) {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
