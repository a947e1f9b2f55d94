package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the root configuration for the FuseBox service.
type Bootstrap struct {
	Server  *Server
	Data    *Data
	Breaker *Breaker
	Alert   *Alert
	Log     *Log
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP holds HTTP server configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database holds the relational store configuration (transition audit
// trail). An empty Source disables the audit database (degraded mode).
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis holds the shared circuit state store configuration.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Breaker holds the default circuit breaker configuration. Individual calls
// may override thresholds and timeouts per execution.
type Breaker struct {
	FailureThreshold int32
	SuccessThreshold int32
	CallTimeout      *durationpb.Duration
	MonitoringPeriod *durationpb.Duration
	ResetTimeout     *durationpb.Duration
	ReportInterval   *durationpb.Duration
	// FlushOnCall writes the stats accumulator to the shared store after
	// every call; when false, stats are only flushed on state transitions.
	FlushOnCall bool
}

// Alert holds the system alert webhook configuration. An empty WebhookUrl
// disables outbound alerts (they are still logged).
type Alert struct {
	WebhookUrl  string
	Timeout     *durationpb.Duration
	DedupWindow *durationpb.Duration
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
