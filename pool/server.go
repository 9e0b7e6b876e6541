package pool

import "fmt"

// ServerInfo identifies one backend server. Identity is pair equality
// on (Host, Port), so ServerInfo is safe to use as a map key.
type ServerInfo struct {
	Host string
	Port int
}

// String renders "host:port" for logging and dialing.
func (s ServerInfo) String() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
