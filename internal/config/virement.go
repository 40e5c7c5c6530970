package config

import (
	"os"
	"strconv"
)

// VirementConfig carries the transfer ceilings. Amounts are whole euros.
type VirementConfig struct {
	PlafondMontant   int64
	PlafondQuotidien int64
	IBANMinLength    int
}

func LoadVirementConfig() *VirementConfig {
	return &VirementConfig{
		PlafondMontant:   getEnvAsInt64("VIREMENT_PLAFOND_MONTANT", 100000),
		PlafondQuotidien: getEnvAsInt64("VIREMENT_PLAFOND_QUOTIDIEN", 100000),
		IBANMinLength:    getEnvAsInt("VIREMENT_IBAN_MIN_LENGTH", 20),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}
