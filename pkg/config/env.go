package config

const (
	// EnvPrefix is the envconfig prefix for all service variables.
	EnvPrefix = "FOGATA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FOGATA_DB_DSN"
	EnvDBHost = "FOGATA_DB_HOST"
	EnvDBUser = "FOGATA_DB_USER"
	EnvDBName = "FOGATA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
