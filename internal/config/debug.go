package config

import "os"

func IsDebug() bool {
	return os.Getenv("ROOST_DEBUG") == "1"
}
