package config

import (
	"flag"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var addr string
	AddrFlag(fs, &addr, "addr", "0.0.0.0:5000", "")
	require.Equal(t, "0.0.0.0:5000", addr)
	err := fs.Parse([]string{
		"-addr=0.0.0.0:1935",
	})
	require.NoError(t, err)
	require.Equal(t, addr, "0.0.0.0:1935")

	fs2 := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	AddrFlag(fs2, &addr, "addr", "0.0.0.0:5000", "")
	err2 := fs2.Parse([]string{
		"-addr=nope",
	})
	require.Error(t, err2)
}

func TestURLVarFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var u *url.URL
	URLVarFlag(fs, &u, "records-url", "memory://", "")
	require.Equal(t, "memory", u.Scheme)

	require.NoError(t, fs.Parse([]string{"-records-url=postgres://user:pw@db:5432/vod?sslmode=disable"}))
	require.Equal(t, "postgres", u.Scheme)
	require.Equal(t, "db:5432", u.Host)
	require.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestValidate(t *testing.T) {
	memory, _ := url.Parse("memory://")
	redis, _ := url.Parse("redis://localhost:6379")
	postgres, _ := url.Parse("postgres://vod@localhost/vod")
	pebble, _ := url.Parse("pebble:///var/lib/vod/records")
	base := Cli{Mode: ModeAll, WorkerConcurrency: 2, JWTSecret: "s3cret", QueueURL: memory}

	require.NoError(t, base.Validate())

	c := base
	c.Mode = "sideways"
	require.ErrorContains(t, c.Validate(), "invalid mode")

	c = base
	c.WorkerConcurrency = 0
	require.ErrorContains(t, c.Validate(), "worker-concurrency")

	c = base
	c.JWTSecret = ""
	require.ErrorContains(t, c.Validate(), "jwt-secret")

	// workers don't serve the API so they don't need the secret
	c = base
	c.Mode = ModeWorker
	c.JWTSecret = ""
	c.QueueURL = redis
	c.RecordsURL = postgres
	require.NoError(t, c.Validate())

	c = base
	c.Mode = ModeAPI
	c.RecordsURL = postgres
	require.ErrorContains(t, c.Validate(), "shared queue")

	for _, records := range []*url.URL{nil, memory, pebble} {
		c = base
		c.Mode = ModeWorker
		c.QueueURL = redis
		c.RecordsURL = records
		require.ErrorContains(t, c.Validate(), "shared record store")
	}

	// a single process can keep everything local
	c = base
	c.RecordsURL = pebble
	require.NoError(t, c.Validate())
}

func TestModes(t *testing.T) {
	require.True(t, (&Cli{Mode: ModeAll}).RunAPI())
	require.True(t, (&Cli{Mode: ModeAll}).RunWorker())
	require.True(t, (&Cli{Mode: ModeAPI}).RunAPI())
	require.False(t, (&Cli{Mode: ModeAPI}).RunWorker())
	require.False(t, (&Cli{Mode: ModeWorker}).RunAPI())
	require.True(t, (&Cli{Mode: ModeWorker}).RunWorker())
}

func TestDirs(t *testing.T) {
	cli := Cli{UploadsDir: "/data/uploads/"}
	require.Equal(t, "/data/uploads/videos", cli.VideosDir())
	require.Equal(t, "/data/uploads/incoming", cli.IncomingDir())
}

func TestIDs(t *testing.T) {
	require.Len(t, RandomTrailer(8), 8)
	require.NotEqual(t, NewBaseName(), NewBaseName())
	require.NotEqual(t, NewJobID(), NewJobID())

	clock := FixedTimestampGenerator{Timestamp: 1700000000}
	a, b := NewAssetID(clock.Now()), NewAssetID(clock.Now())
	require.Len(t, a, 26)
	require.NotEqual(t, a, b)
}
