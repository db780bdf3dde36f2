package config

import (
	"flag"
	"os"
	"time"

	"github.com/ekoaw/phraseaudio/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-f string   ffmpeg binary path
//	-t int      conversion timeout, seconds
//	-m string   temp directory for staged audio files
//	-q int      cleanup queue size
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - The conversion timeout is accepted as an integer in seconds and then
//     converted to a time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-u", "-p", "-b", "-g", "-e", "-f", "-t", "-m", "-q"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.FFmpegPath, "f", config.FFmpegPath, "ffmpeg binary path")

	conversionTimeout := fs.Int("t", int(config.ConversionTimeout.Seconds()), "conversion_timeout (in seconds)")

	fs.StringVar(&config.TempDir, "m", config.TempDir, "temp directory for staged audio files")
	fs.IntVar(&config.CleanupQueueSize, "q", config.CleanupQueueSize, "cleanup queue size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ConversionTimeout = time.Duration(*conversionTimeout) * time.Second
}
