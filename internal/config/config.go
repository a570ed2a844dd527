package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shulscreen/internal/clock"
	"shulscreen/internal/schedule"
	"shulscreen/internal/week"
)

// MyZmanimConfig holds the zmanim API account and lookup settings.
type MyZmanimConfig struct {
	// User and Key are the API credentials. They are usually supplied through
	// SHULSCREEN_MYZMANIM__USER / SHULSCREEN_MYZMANIM__KEY or a .env file.
	User string `yaml:"user" json:"user"`
	Key  string `yaml:"key" json:"-"`

	Coding   string `yaml:"coding" json:"coding"`
	Language string `yaml:"language" json:"language"`

	// PostalQuery is the postal code resolved to a location id on first use.
	PostalQuery string `yaml:"postal_query" json:"postal_query"`

	// Endpoint is the API base URL; method names are appended to it.
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`

	TimeoutSeconds  int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"min=0"`
	DayCacheMinutes int `yaml:"day_cache_minutes" json:"day_cache_minutes" validate:"min=0"`
}

// ShulConfig is the header shown at the top of the board.
type ShulConfig struct {
	Name          string `yaml:"name" json:"name"`
	LocationLabel string `yaml:"location_label" json:"location_label"`
}

// DisplayConfig controls formatting and the refresh interval.
type DisplayConfig struct {
	// TimeFormat is "h12" or "h24".
	TimeFormat string `yaml:"time_format" json:"time_format" validate:"oneof=h12 h24"`

	// AnchorNextWeek shows next week's schedule on the last two days before
	// the week starts (Friday and Shabbos for a Sunday week).
	AnchorNextWeek bool `yaml:"anchor_next_week_on_fri_shabbos" json:"anchor_next_week_on_fri_shabbos"`

	// RefreshSeconds, if set, overrides the cron "refresh" schedule. Values
	// below 60 are raised to 60.
	RefreshSeconds int `yaml:"refresh_seconds" json:"refresh_seconds" validate:"min=0"`
}

// RulesConfig configures weekly aggregation.
type RulesConfig struct {
	// WeekStartsOn is the first weekday of the aggregation week (Sunday = 0).
	WeekStartsOn int `yaml:"week_starts_on" json:"week_starts_on" validate:"min=0,max=6"`

	// Profiles are named weekday allow-lists. Entries here override or extend
	// the built-in sunThu and sunFri profiles.
	Profiles map[string][]int `yaml:"profiles,omitempty" json:"profiles,omitempty" validate:"dive,dive,min=0,max=6"`

	WeeklyMinchaMaariv schedule.BadgeRule `yaml:"weekly_mincha_maariv" json:"weekly_mincha_maariv"`
}

// LocationCacheConfig selects where resolved location ids are kept.
type LocationCacheConfig struct {
	// Backend is "file" (default) or "redis".
	Backend string `yaml:"backend" json:"backend" validate:"oneof=file redis"`

	// Path is the JSON file used by the file backend. Relative paths are
	// resolved against CacheDir.
	Path string `yaml:"path" json:"path"`

	RedisAddr     string `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db" validate:"min=0"`
}

// CaptureConfig controls the headless-browser preview of the board.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Width   int  `yaml:"width" json:"width" validate:"min=0"`
	Height  int  `yaml:"height" json:"height" validate:"min=0"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone that decides what "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/10 * * * *"),
	// used when display.refresh_seconds is not set.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the location cache and the preview screenshot.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	MyZmanim MyZmanimConfig `yaml:"myzmanim" json:"myzmanim"`
	Shul     ShulConfig     `yaml:"shul" json:"shul"`
	Display  DisplayConfig  `yaml:"display" json:"display"`
	Rules    RulesConfig    `yaml:"rules" json:"rules"`

	// Zmanim is today's grid, in display order.
	Zmanim []schedule.ZmanItem `yaml:"zmanim" json:"zmanim" validate:"dive"`

	Davening schedule.Lists `yaml:"davening" json:"davening"`

	LocationCache LocationCacheConfig `yaml:"location_cache" json:"location_cache"`
	Capture       CaptureConfig       `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/New_York"
	defaultRefreshCron = "*/10 * * * *"
	defaultEndpoint    = "https://api.myzmanim.com/engine1.json.aspx"
	defaultPostal      = "08701"
	credentialMarker   = "PUT_YOUR"
	minRefreshSeconds  = 60
)

func defaultZmanim() []schedule.ZmanItem {
	return []schedule.ZmanItem{
		{Label: "Alos", Field: "Dawn72fix"},
		{Label: "Sunrise", Field: "SunriseDefault"},
		{Label: "Sof Zman Shema (MA)", Field: "ShemaMA72fix"},
		{Label: "Sof Zman Shema (GRA)", Field: "ShemaGra"},
		{Label: "Chatzos", Field: "Midday"},
		{Label: "Mincha Gedola", Field: "MinchaStrict"},
		{Label: "Plag HaMincha", Field: "PlagGra"},
		{Label: "Shkiya", Field: "SunsetDefault"},
		{Label: "Tzeis", Field: "NightShabbos"},
	}
}

// DefaultConfig returns an in-memory default configuration, including a
// sample schedule that exercises every entry type.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		LogLevel:    "info",
		RefreshCron: defaultRefreshCron,
		CacheDir:    "cache",
		MyZmanim: MyZmanimConfig{
			User:            "PUT_YOUR_USER_HERE",
			Key:             "PUT_YOUR_KEY_HERE",
			Coding:          "JS",
			Language:        "en",
			PostalQuery:     defaultPostal,
			Endpoint:        defaultEndpoint,
			TimeoutSeconds:  15,
			DayCacheMinutes: 360,
		},
		Shul: ShulConfig{Name: "Shul Screen"},
		Display: DisplayConfig{
			TimeFormat:     string(clock.H12),
			AnchorNextWeek: true,
			RefreshSeconds: 600,
		},
		Rules: RulesConfig{
			WeekStartsOn: 0,
			WeeklyMinchaMaariv: schedule.BadgeRule{
				Label:       "Mincha/Maariv",
				BaseField:   "SunsetDefault",
				WeekProfile: week.DefaultProfile,
			},
		},
		Zmanim: defaultZmanim(),
		Davening: schedule.Lists{
			Shacharis: []schedule.Entry{
				{Label: "Vasikin", Type: string(schedule.KindWeeklyLatest), BaseField: "SunriseDefault", OffsetMin: -25},
				{Label: "Shacharis", Type: string(schedule.KindFixed), Time: "7:00"},
				{Label: "Shacharis", Type: string(schedule.KindFixed), Time: "8:15"},
				{Label: "Shabbos Shacharis", Type: string(schedule.KindFixedIfDow), Time: "9:00", Dow: []int{6}},
			},
			Mincha: []schedule.Entry{
				{Label: "Mincha", Type: string(schedule.KindWeeklyEarliest), BaseField: "SunsetDefault", OffsetMin: -15},
				{Label: "Erev Shabbos Mincha", Type: string(schedule.KindWeeklyEarliest), BaseField: "SunsetDefault", OffsetMin: -10, WeekProfile: "sunFri"},
				{Label: "Mincha Gedola", Type: string(schedule.KindManualNote), Note: "30 min after Chatzos"},
			},
			Maariv: []schedule.Entry{
				{Label: "Maariv", Type: string(schedule.KindWeeklyLatestOrFixed), BaseField: "NightShabbos", FixedTime: "18:30"},
				{Label: "Late Maariv", Type: string(schedule.KindFixed), Time: "21:45"},
			},
		},
		LocationCache: LocationCacheConfig{
			Backend: "file",
			Path:    "locations.json",
		},
		Capture: CaptureConfig{
			Width:  1920,
			Height: 1080,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}

	mz := &c.MyZmanim
	if mz.Coding == "" {
		mz.Coding = "JS"
	}
	if mz.Language == "" {
		mz.Language = "en"
	}
	if mz.PostalQuery == "" {
		mz.PostalQuery = defaultPostal
	}
	if mz.Endpoint == "" {
		mz.Endpoint = defaultEndpoint
	}
	mz.Endpoint = strings.TrimRight(mz.Endpoint, "/")
	if mz.TimeoutSeconds <= 0 {
		mz.TimeoutSeconds = 15
	}

	if c.Shul.Name == "" {
		c.Shul.Name = "Shul Screen"
	}

	// Unknown formats fall back to 12-hour rather than failing validation.
	c.Display.TimeFormat = string(clock.ParseMode(c.Display.TimeFormat))

	if c.Zmanim == nil {
		c.Zmanim = defaultZmanim()
	}

	if c.LocationCache.Backend == "" {
		c.LocationCache.Backend = "file"
	}
	if c.LocationCache.Path == "" {
		c.LocationCache.Path = "locations.json"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1920
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1080
	}
}

// RefreshSpec returns the cron spec for periodic refresh. A positive
// display.refresh_seconds wins over the cron string and is clamped to at
// least one minute.
func (c *Config) RefreshSpec() string {
	if secs := c.Display.RefreshSeconds; secs > 0 {
		if secs < minRefreshSeconds {
			secs = minRefreshSeconds
		}
		return fmt.Sprintf("@every %ds", secs)
	}
	if c.RefreshCron == "" {
		return defaultRefreshCron
	}
	return c.RefreshCron
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Credentials reports whether API credentials look usable. Empty values and
// the placeholder written by DefaultConfig are rejected.
func (c *Config) Credentials() error {
	u, k := c.MyZmanim.User, c.MyZmanim.Key
	if u == "" || k == "" || strings.Contains(u, credentialMarker) || strings.Contains(k, credentialMarker) {
		return ErrMissingCredentials
	}
	return nil
}

// Settings maps the config onto what the schedule engine consumes.
func (c *Config) Settings() schedule.Settings {
	profiles := week.DefaultProfiles()
	for name, p := range week.ProfilesFromInts(c.Rules.Profiles) {
		profiles[name] = p
	}
	return schedule.Settings{
		Mode:           clock.ParseMode(c.Display.TimeFormat),
		WeekStart:      time.Weekday(c.Rules.WeekStartsOn),
		AnchorNextWeek: c.Display.AnchorNextWeek,
		Profiles:       profiles,
		Lists:          c.Davening,
		Badge:          c.Rules.WeeklyMinchaMaariv,
		Zmanim:         c.Zmanim,
		Name:           c.Shul.Name,
		LocationLabel:  c.Shul.LocationLabel,
	}
}

// LocationCachePath returns the file backend path, resolved against CacheDir
// when relative.
func (c *Config) LocationCachePath() string {
	p := c.LocationCache.Path
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.CacheDir, p)
}

// PreviewPath is where the board screenshot is written and served from.
func (c *Config) PreviewPath() string {
	return filepath.Join(c.CacheDir, "preview.png")
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shulscreen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
