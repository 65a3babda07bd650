package skynet

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// InstanceUUID builds the instance identifier from spec.md §3:
// "<ip>:<port>-<pid>-<Name>-<Version>", taking the pid from the
// calling process. Two processes publishing the same (ip, port, name,
// version) therefore get different identifiers; a restarted instance
// does not reuse its prior record's identifier.
func InstanceUUID(ip string, port int, name, version string) string {
	return fmt.Sprintf("%s:%d-%d-%s-%s", ip, port, os.Getpid(), name, version)
}

// NewOpaqueID returns a random identifier for values that need not be
// deterministic: connection ClientIDs and RequestInfo.RequestID.
// Grounded on config.go's UUID() flag default, generalized to
// google/uuid rather than a process-wide flag-supplied value, since
// callers may need many of these per process (one per accepted
// connection).
func NewOpaqueID() string {
	return uuid.NewString()
}
