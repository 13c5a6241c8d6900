// Package config loads collabmd settings from the environment.
//
// Every variable carries the COLLABMD_ prefix. An optional .env file is read
// first; variables already set in the process environment win.
//
// # Variables
//
//	COLLABMD_ADDR                     listen address (":3000")
//	COLLABMD_LOG_LEVEL                debug, info, warn, error ("info")
//	COLLABMD_LOG_FORMAT               text or json ("text")
//	COLLABMD_ALLOWED_ORIGINS          comma list of websocket origins, empty allows all
//	COLLABMD_MAX_MESSAGE_SIZE         largest inbound frame in bytes (1048576)
//	COLLABMD_SEND_QUEUE_SIZE          outbound frames buffered per connection (256)
//	COLLABMD_WRITE_TIMEOUT            per-frame write deadline ("10s")
//	COLLABMD_KEEPALIVE_INTERVAL       websocket ping interval, 0 disables ("0s")
//	COLLABMD_SHUTDOWN_TIMEOUT         graceful shutdown limit ("30s")
//	COLLABMD_EMPTY_SESSION_TTL        evict sessions empty this long, 0 keeps them ("0s")
//	COLLABMD_CLEANUP_INTERVAL         eviction scan interval ("30s")
//	COLLABMD_WELCOME_CONTENT          initial document of new sessions
//	COLLABMD_BROKER                   memory or redis ("memory"); redis fans out
//	                                  events only, session state stays per
//	                                  process, so route a session to one replica
//	COLLABMD_REDIS_URL                redis://[:password@]host:port/db
//	COLLABMD_REDIS_CHANNEL_PREFIX     pub/sub channel prefix ("collabmd:session:")
//	COLLABMD_EXPORT_S3_BUCKET         enables export when set
//	COLLABMD_EXPORT_S3_PREFIX         object key prefix
//	COLLABMD_EXPORT_S3_REGION         AWS region
//	COLLABMD_EXPORT_S3_ENDPOINT       custom endpoint for S3-compatible stores
//	COLLABMD_EXPORT_S3_ACCESS_KEY_ID  static credentials, else the default chain
//	COLLABMD_EXPORT_S3_SECRET_KEY
//	COLLABMD_METRICS_NAMESPACE        Prometheus namespace ("collabmd")
//
// # Usage
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//	    errors.PrintError(os.Stderr, err)
//	    os.Exit(1)
//	}
package config
