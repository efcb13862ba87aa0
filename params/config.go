package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Node struct {
	// DataDir holds the Pebble database with the persisted order books and
	// vault balances.
	DataDir string
	// LogFile receives the structured log in addition to stdout.
	LogFile string
}

type API struct {
	ListenAddr  string
	CORSOrigins []string
}

type Config struct {
	Node Node
	API  API
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir: "data/state.db",
			LogFile: "data/node.log",
		},
		API: API{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment
// variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Node.DataDir = dir
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.ListenAddr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = strings.Split(origins, ",")
	}

	return cfg
}
