package config

import (
	"os"
	"strings"
)

// StrictProductMaster makes recipe saves check every referenced product against the product master:
// the output must be a finished product and every input and by-product must exist.
//
// Set via env:
// - STRICT_PRODUCT_MASTER=true
func StrictProductMaster() bool {
	return boolFromEnv("STRICT_PRODUCT_MASTER")
}

// SeedDemoData seeds the demo products and recipes when no snapshot exists yet.
//
// Set via env:
// - SEED_DEMO_DATA=true
func SeedDemoData() bool {
	return boolFromEnv("SEED_DEMO_DATA")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
