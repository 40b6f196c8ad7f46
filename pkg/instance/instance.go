package instance

import "github.com/angelmondragon/ledgerly-backend/pkg/env"

// GetID identifies the running process in logs. Heroku sets DYNO; other
// platforms can set LEDGERLY_INSTANCE_ID.
func GetID(fallback string) string {
	return env.First(fallback, "DYNO", "LEDGERLY_INSTANCE_ID")
}
