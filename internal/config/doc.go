/*
Package config loads remotefs settings from defaults, a YAML file, REMOTEFS_*
environment variables and command line flags, in increasing precedence.

Example file:

	global:
	  log_level: INFO
	  log_format: text
	remote:
	  server_url: http://localhost:3000
	mount:
	  mount_point: /tmp/remote-fs
	  fsname: remote-fs
	network:
	  timeout: 0s
	  retry:
	    max_attempts: 1
	  circuit_breaker:
	    enabled: false
	monitoring:
	  metrics:
	    enabled: false
	    port: 9464
	  health_checks:
	    enabled: false
	    interval: 30s

The defaults call the metadata service exactly once per request with no
timeout beyond the HTTP transport's own, and send nothing between requests.
Retries, a per-call timeout, the circuit breaker and periodic health checks
are opt-in.

Environment variables:

	REMOTEFS_LOG_LEVEL        REMOTEFS_LOG_FILE      REMOTEFS_LOG_FORMAT
	REMOTEFS_SERVER_URL       REMOTEFS_MOUNT_POINT   REMOTEFS_ALLOW_OTHER
	REMOTEFS_DEBUG            REMOTEFS_TIMEOUT       REMOTEFS_RETRY_ATTEMPTS
	REMOTEFS_CIRCUIT_BREAKER  REMOTEFS_METRICS_ENABLED
	REMOTEFS_METRICS_PORT     REMOTEFS_HEALTH_CHECKS REMOTEFS_HEALTH_INTERVAL
*/
package config
