package pool

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig reads a config file at path (any format viper supports --
// YAML, JSON, TOML) plus POOL_-prefixed environment overrides, and
// builds a validated Config. Keys match the PoolConfig option table of
// spec §6: poolName, thriftServers ([]{host,port}), connectTimeout,
// minConnectionPerServer, maxConnectionPerServer, idleMaxAge,
// idleConnectionTestPeriod, maxConnectionAge, lazyInit,
// acquireIncrement, acquireRetryAttempts, acquireRetryDelayInMs,
// maxConnectionCreateFailedCount, connectionTimeoutInMs,
// poolAvailabilityThreshold, serviceOrder (FIFO|LIFO).
//
// thriftProtocol, clientClass, and thriftClientClasses are
// intentionally not loadable from file: the wire protocol selector and
// client constructors are bound programmatically into the
// ConnectionFactory closure the caller passes to New, not discovered
// from config (see connection.go).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POOL")
	v.AutomaticEnv()
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config: %v", ErrConfigInvalid, err)
	}

	servers, err := parseServers(v.Get("thriftServers"))
	if err != nil {
		return nil, err
	}

	order := ScanFIFO
	if v.GetString("serviceOrder") == "LIFO" {
		order = ScanLIFO
	}

	return NewConfig(
		WithName(v.GetString("poolName")),
		WithServers(servers...),
		WithConnectTimeout(v.GetDuration("connectTimeout")),
		WithConnectionsPerServer(v.GetInt("minConnectionPerServer"), v.GetInt("maxConnectionPerServer")),
		WithIdleMaxAge(v.GetDuration("idleMaxAge")),
		WithIdleConnectionTestPeriod(v.GetDuration("idleConnectionTestPeriod")),
		WithMaxConnectionAge(v.GetDuration("maxConnectionAge")),
		WithLazyInit(v.GetBool("lazyInit")),
		WithAcquireIncrement(v.GetInt("acquireIncrement")),
		WithAcquireRetry(v.GetInt("acquireRetryAttempts"), time.Duration(v.GetInt("acquireRetryDelayInMs"))*time.Millisecond),
		WithMaxConnectionCreateFailedCount(v.GetInt("maxConnectionCreateFailedCount")),
		WithConnectionTimeout(time.Duration(v.GetInt("connectionTimeoutInMs"))*time.Millisecond),
		WithPoolAvailabilityThreshold(v.GetInt("poolAvailabilityThreshold")),
		WithServiceOrder(order),
	)
}

func parseServers(raw any) ([]ServerInfo, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: thriftServers must be a list of {host, port}", ErrConfigInvalid)
	}
	servers := make([]ServerInfo, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: thriftServers entries must be objects", ErrConfigInvalid)
		}
		host, _ := m["host"].(string)
		port := 0
		switch v := m["port"].(type) {
		case int:
			port = v
		case float64:
			port = int(v)
		}
		servers = append(servers, ServerInfo{Host: host, Port: port})
	}
	return servers, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("poolName", "pool")
	v.SetDefault("connectTimeout", "5s")
	v.SetDefault("minConnectionPerServer", 0)
	v.SetDefault("maxConnectionPerServer", 8)
	v.SetDefault("acquireIncrement", 1)
	v.SetDefault("acquireRetryAttempts", 3)
	v.SetDefault("acquireRetryDelayInMs", 100)
	v.SetDefault("maxConnectionCreateFailedCount", 5)
	v.SetDefault("connectionTimeoutInMs", 0)
	v.SetDefault("poolAvailabilityThreshold", 20)
	v.SetDefault("serviceOrder", "FIFO")
	v.SetDefault("lazyInit", false)
}
