package utils

import "github.com/spf13/viper"

// GetEnv returns the application environment. Read straight from viper so
// the logger can initialize before the full config is unmarshaled.
func GetEnv() string {
	viper.AutomaticEnv()
	viper.SetDefault("ENV", "development")
	return viper.GetString("ENV")
}

// IsProduction checks if the environment is production
func IsProduction() bool {
	return GetEnv() == "production"
}
