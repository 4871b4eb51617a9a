package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

type Cli struct {
	HTTPAddress         string
	HTTPInternalAddress string
	UploadsDir          string
	PublicURL           *url.URL
	RecordsURL          *url.URL
	QueueURL            *url.URL
	WorkerConcurrency   int
	QueueMaxRetry       int
	Mode                string
	JWTSecret           string
	MaxUploadBytes      int64
	MaxInFlightUploads  int64
	ThumbnailOffset     time.Duration
}

func (cli *Cli) RunAPI() bool {
	return cli.Mode == ModeAll || cli.Mode == ModeAPI
}

func (cli *Cli) RunWorker() bool {
	return cli.Mode == ModeAll || cli.Mode == ModeWorker
}

// Validate checks combinations that individual flag parsers can't see.
func (cli *Cli) Validate() error {
	switch cli.Mode {
	case ModeAll, ModeAPI, ModeWorker:
	default:
		return fmt.Errorf("invalid mode %q, must be one of %s|%s|%s", cli.Mode, ModeAll, ModeAPI, ModeWorker)
	}
	if cli.WorkerConcurrency < 1 {
		return fmt.Errorf("worker-concurrency must be at least 1, got %d", cli.WorkerConcurrency)
	}
	if cli.RunAPI() && cli.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required when serving the API")
	}
	if cli.Mode == ModeAll {
		return nil
	}
	// separate api and worker processes must share the queue and the record store
	if scheme := urlScheme(cli.QueueURL); scheme == "" || scheme == "memory" {
		return fmt.Errorf("mode %q needs a shared queue, memory:// only works with mode %q", cli.Mode, ModeAll)
	}
	switch urlScheme(cli.RecordsURL) {
	case "", "memory", "pebble":
		return fmt.Errorf("mode %q needs a shared record store, memory:// and pebble:// only work with mode %q", cli.Mode, ModeAll)
	}
	return nil
}

func urlScheme(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// VideosDir is the Rendition Store root.
func (cli *Cli) VideosDir() string {
	return strings.TrimRight(cli.UploadsDir, "/") + "/" + VideosSubdir
}

// IncomingDir holds raw uploads until a worker has published them.
func (cli *Cli) IncomingDir() string {
	return strings.TrimRight(cli.UploadsDir, "/") + "/" + IncomingSubdir
}

// AddrFlag is a flag that fails if the value isn't a host:port.
func AddrFlag(fs *flag.FlagSet, dest *string, name, value, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		_, _, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		*dest = s
		return nil
	})
}

func parseURL(s string, dest **url.URL) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}
