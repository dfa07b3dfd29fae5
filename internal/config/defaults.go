package config

// Default values for configuration options ("layer 0" of the override chain).
const (
	defaultCredentialsFile = "credentials.json"
	defaultPageSize        = 1000
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultMetricsAddr     = ":9464"
	defaultScheduleWeekday = "sunday"
	defaultScheduleTime    = "02:00"
	dbFileName             = "doclocker.db"
	lockFileName           = "sync.lock"
	pidFileName            = "daemon.pid"
)

// defaultRoots are the four document folders the locker was built around.
var defaultRoots = []Root{
	{Key: "EBOOKS", ID: "12ffd7GqHAiy3J62Vu65LbVt6-ultog5Z", Label: "📚 EBOOKS"},
	{Key: "Pengetahuan", ID: "1Y2SLCbyHoB53BaQTTwRta2T6dv_drRll", Label: "🧠 Pengetahuan"},
	{Key: "Service_Manual_1", ID: "1CHz8UWZXfJtXlcjp9-FPAo-t_KkfTztW", Label: "🔧 Service Manual (1)"},
	{Key: "Service_Manual_2", ID: "1_SsZ7SkaZxvXUZ6RUAA_o7WR_GAtgEwT", Label: "⚙️ Service Manual (2)"},
}

// DefaultRoots returns a copy of the built-in root list.
func DefaultRoots() []Root {
	roots := make([]Root, len(defaultRoots))
	copy(roots, defaultRoots)

	return roots
}

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
// Roots are left empty here and filled in after decoding, because TOML
// arrays of tables append rather than replace.
func DefaultConfig() *Config {
	return &Config{
		DataDir:         DefaultDataDir(),
		CredentialsFile: defaultCredentialsFile,
		PageSize:        defaultPageSize,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		MetricsAddr:     defaultMetricsAddr,
		ScheduleWeekday: defaultScheduleWeekday,
		ScheduleTime:    defaultScheduleTime,
	}
}
