package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/failseed/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-l", "-i", "-d", "-s", "-t", "-r",
	"-p", "-m", "-k", "-y", "-x", "-n",
	"-b", "-e", "-u", "-w", "-z",
}

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-l string   log level
//	-i string   storage driver: postgres | sqlite
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-p string   LLM provider: openai | gemini | mock
//	-m string   LLM model
//	-k string   LLM API key
//	-y string   prompt policy YAML file
//	-x int      max characters per user message
//	-n int      max user turns per conversation
//	-b string   S3 export bucket (empty disables export)
//	-e string   S3 base endpoint
//	-u string   S3 access key
//	-w string   S3 secret key
//	-z string   S3 region
//
// os.Args is filtered with flagx.FilterArgs first, so unknown flags such as
// -c are left to their own parsers.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.StorageDriver, "i", config.StorageDriver, "storage driver (postgres|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.LLMProvider, "p", config.LLMProvider, "LLM provider (openai|gemini|mock)")
	fs.StringVar(&config.LLMModel, "m", config.LLMModel, "LLM model")
	fs.StringVar(&config.LLMAPIKey, "k", config.LLMAPIKey, "LLM API key")
	fs.StringVar(&config.PromptPolicyFile, "y", config.PromptPolicyFile, "prompt policy YAML file")
	fs.IntVar(&config.MaxInputChars, "x", config.MaxInputChars, "max characters per message")
	fs.IntVar(&config.MaxTurns, "n", config.MaxTurns, "max user turns per conversation")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 export bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "w", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Region, "z", config.S3Region, "S3 region")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
}
