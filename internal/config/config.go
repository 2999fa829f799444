// Package config loads service settings from an optional .env file and the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var (
	LogLevel         string
	ServerRunAddress string
	DataPath         string
	SecretKey        string
	BcryptCost       int
	SerializeWrites  bool
	CORSOrigins      []string
	WatchDataFile    bool
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = getenv("LOG_LEVEL", "info")
	ServerRunAddress = getenv("SERVER_RUN_ADDRESS", "0.0.0.0:3000")
	DataPath = getenv("DATA_PATH", "data.json")
	SecretKey = getenv("SECRET_KEY", "SuperSecretKey")

	BcryptCost = bcrypt.DefaultCost
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			log.Printf("Invalid BCRYPT_COST %q, using %d", v, bcrypt.DefaultCost)
		} else {
			BcryptCost = cost
		}
	}

	SerializeWrites = getbool("SERIALIZE_WRITES", true)
	WatchDataFile = getbool("WATCH_DATA_FILE", true)
	CORSOrigins = splitList(getenv("CORS_ORIGINS", "*"))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s %q, using %t", key, v, def)
		return def
	}
	return b
}

// splitList turns a comma separated value into a trimmed, non-empty list.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
