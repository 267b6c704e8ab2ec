/*
Package gateway is the HTTP client for the remote metadata service.

Endpoints

	GET   {base}/health                 any 2xx is healthy
	GET   {base}/resolve-inode/{ino}    body is the raw path
	GET   {base}/metadata?path={path}   body is a metadata record
	PATCH {base}/metadata?path={path}   sparse JSON update, body is the new record

Every call is classified into exactly one outcome:

	2xx                       success
	404                       NOT_FOUND     (resolve and fetch only)
	other status, bad record  SERVER_ERROR
	transport failure         NETWORK_ERROR

Errors are *errors.RemoteFSError values; use errors.IsNotFound,
errors.IsServerError and errors.IsNetworkError to inspect them. Outcomes are
logged at error level for server and network failures, warning for not-found
and info for success, and counted by the metrics collector.

The root inode resolves to "/" without a request. With default Options each
call is a single attempt bounded only by the HTTP transport. Retries apply to
network errors only, and an optional circuit breaker fails calls fast while
the service keeps refusing connections.
*/
package gateway
