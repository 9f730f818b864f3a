package instance

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const idEnv = "FUELSTATION_INSTANCE_ID"

// ID names this process in logs and in lock values held in redis. It is
// FUELSTATION_INSTANCE_ID when set, otherwise hostname-pid.
var ID = sync.OnceValue(func() string {
	return resolve(os.Getenv(idEnv), os.Hostname, os.Getpid())
})

func resolve(configured string, hostname func() (string, error), pid int) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	host, err := hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, pid)
}
