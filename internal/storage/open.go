package storage

import (
	"context"
	"fmt"

	"textgend/internal/common/fsutil"
)

// Options selects and configures a Backend.
type Options struct {
	// Driver is memory, sqlite or redis.
	Driver    string
	Path      string
	RedisAddr string
	RedisDB   int
	// Prefix overrides DefaultPrefix when non-empty.
	Prefix string
}

// Open builds a Store over the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var b Backend
	switch opts.Driver {
	case "", "memory":
		b = NewMemory()
	case "sqlite":
		p := opts.Path
		if p == "" {
			p = ":memory:"
		}
		p, err := fsutil.ExpandHome(p)
		if err != nil {
			return nil, err
		}
		if p != ":memory:" {
			if err := fsutil.EnsureParentDir(p); err != nil {
				return nil, err
			}
		}
		s, err := OpenSQLite(ctx, p)
		if err != nil {
			return nil, err
		}
		b = s
	case "redis":
		r := NewRedis(RedisOptions{Addr: opts.RedisAddr, DB: opts.RedisDB})
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("redis %s: %w", opts.RedisAddr, err)
		}
		b = r
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
	var o []Option
	if opts.Prefix != "" {
		o = append(o, WithPrefix(opts.Prefix))
	}
	return New(b, o...), nil
}
