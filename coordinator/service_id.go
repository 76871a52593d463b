package coordinator

import "fmt"

// deriveServiceID computes the natural key "{name}-{host}-{port}" from the
// advertised pair, per the data model in §3. It must be idempotent: the
// same triple yields the same id on retry.
func deriveServiceID(name, host string, port int32) string {
	return fmt.Sprintf("%s-%s-%d", name, host, port)
}
