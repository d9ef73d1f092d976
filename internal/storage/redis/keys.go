package redis

import "fmt"

const (
	keyPrefix = "focusforge"

	// blockConfigKey mirrors the sync partition's blockConfig entry.
	blockConfigKey = keyPrefix + ":sync:blockConfig"

	// usageIndexKey is a sorted set of hostnames scored by lastVisitAt.
	usageIndexKey = keyPrefix + ":local:usageData:index"
)

func usageKey(hostname string) string {
	return fmt.Sprintf("%s:local:usageData:%s", keyPrefix, hostname)
}
