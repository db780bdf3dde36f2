package config

import (
	"encoding/json"
	"os"

	"github.com/ekoaw/phraseaudio/internal/flagx"
	"github.com/ekoaw/phraseaudio/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields, which
// allows parsing both string values such as "60s" and integer nanoseconds.
// After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr      string              `json:"endpoint_addr"`
	DatabaseDSN       string              `json:"database_dsn"`
	S3RootUser        string              `json:"s3_root_user"`
	S3RootPassword    string              `json:"s3_root_password"`
	S3Bucket          string              `json:"s3_bucket"`
	S3Region          string              `json:"s3_region"`
	S3BaseEndpoint    string              `json:"s3_base_endpoint"`
	FFmpegPath        string              `json:"ffmpeg_path"`
	ConversionTimeout timex.Duration      `json:"conversion_timeout"`
	ConversionFormats map[string][]string `json:"conversion_formats"`
	UploadExtension   string              `json:"upload_extension"`
	StorageFormat     string              `json:"storage_format"`
	TempDir           string              `json:"temp_dir"`
	CleanupQueueSize  int                 `json:"cleanup_queue_size"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; without them no JSON file is loaded. Only fields present with
// non-zero values override the defaults. An unreadable or invalid file
// panics: a misconfigured server must not start.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.FFmpegPath != "" {
		config.FFmpegPath = c.FFmpegPath
	}
	if c.ConversionTimeout.Duration != 0 {
		config.ConversionTimeout = c.ConversionTimeout.Duration
	}
	if len(c.ConversionFormats) != 0 {
		config.ConversionFormats = c.ConversionFormats
	}
	if c.UploadExtension != "" {
		config.UploadExtension = c.UploadExtension
	}
	if c.StorageFormat != "" {
		config.StorageFormat = c.StorageFormat
	}
	if c.TempDir != "" {
		config.TempDir = c.TempDir
	}
	if c.CleanupQueueSize != 0 {
		config.CleanupQueueSize = c.CleanupQueueSize
	}
}
