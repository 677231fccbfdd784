package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-e string   vision endpoint base URL
//	-k string   vision API key
//	-m string   vision model name
//	-q int      vision calls per minute cap
//	-l int      challenge answer length, digits
//	-t int      solve-submit attempt ceiling
//	-x int      max cases per browser profile
//	-w int      pool parallelism (concurrent leases)
//	-f string   profiles root directory
//	-b int      sync wall-clock budget, minutes
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - The sync budget is accepted as an integer in minutes and then converted
//     to a time.Duration value.
//   - S3 audit settings and the headless toggle are JSON-file only.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-e", "-k", "-m", "-q", "-l", "-t", "-x", "-w", "-f", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.VisionEndpoint, "e", config.VisionEndpoint, "vision endpoint base URL")
	fs.StringVar(&config.VisionAPIKey, "k", config.VisionAPIKey, "vision API key")
	fs.StringVar(&config.VisionModel, "m", config.VisionModel, "vision model")
	fs.IntVar(&config.VisionPerMinuteCap, "q", config.VisionPerMinuteCap, "vision calls per minute cap")

	fs.IntVar(&config.CaptchaAnswerLength, "l", config.CaptchaAnswerLength, "challenge answer length (digits)")
	fs.IntVar(&config.CaptchaAttemptCeiling, "t", config.CaptchaAttemptCeiling, "solve-submit attempt ceiling")

	fs.IntVar(&config.MaxCasesPerProfile, "x", config.MaxCasesPerProfile, "max cases per profile")
	fs.IntVar(&config.PoolParallelism, "w", config.PoolParallelism, "pool parallelism")
	fs.StringVar(&config.ProfilesDir, "f", config.ProfilesDir, "profiles root directory")

	syncBudget := fs.Int("b", int(config.SyncBudget.Minutes()), "sync_budget (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SyncBudget = time.Duration(*syncBudget) * time.Minute
}
