package config

import (
	"time"
)

var Version string

// Used so that we can generate fixed timestamps in tests
var Clock TimestampGenerator = RealTimestampGenerator{}

const (
	// Sub-directories of the uploads root
	VideosSubdir   = "videos"
	IncomingSubdir = "incoming"

	ThumbnailFilename = "thumbnail.jpg"

	// Upper bound of the chunk served when a watch request carries no Range header
	DefaultChunkBytes = 1 << 20

	// Read buffer of the range streaming loop
	StreamBufferBytes = 64 * 1024

	DefaultThumbnailOffset = 5 * time.Second
	DefaultMaxUploadBytes  = 4 << 30
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)
