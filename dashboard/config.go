package dashboard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/dashboard/database"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

const envPrefix = "RETAILDASH_"

// LoadConfig decodes the TOML file at path, overlays an optional .env file
// and RETAILDASH_* environment variables, then fills defaults. An empty path
// or a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config: %w", err)
		default:
			defer file.Close()
			if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	Web    WebConfig         `toml:"web"`
	Data   DataConfig        `toml:"data"`
	Cohort CohortConfig      `toml:"cohort"`
	Cache  CacheConfig       `toml:"cache"`
	DB     database.DBConfig `toml:"db"`
	Spaces SpacesConfig      `toml:"spaces"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

type WebConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AdminToken     string   `toml:"admin_token"`
	AllowedOrigins []string `toml:"allowed_origins"`
	// ReloadRateLimit is the number of admin requests allowed per client per
	// minute, counted before the token is checked.
	ReloadRateLimit int `toml:"reload_rate_limit"`
	// TrustedProxies are the peers whose ProxyHeader names the client IP.
	// With none listed the socket address is used.
	TrustedProxies []string `toml:"trusted_proxies"`
	ProxyHeader    string   `toml:"proxy_header"`
}

func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

const (
	SourceLocal  = "local"
	SourceSpaces = "spaces"

	TransactionsParquet  = "parquet"
	TransactionsPostgres = "postgres"
)

type DataConfig struct {
	// Source is where the six files are read from: local or spaces.
	Source string `toml:"source"`
	// Transactions selects the transaction provider: parquet or postgres.
	Transactions string         `toml:"transactions"`
	Dir          string         `toml:"dir"`
	Files        loader.Files   `toml:"files"`
	Taxonomy     TaxonomyConfig `toml:"taxonomy"`
}

// TaxonomyConfig overrides the built-in cleaning dictionaries. Empty fields
// keep the defaults.
type TaxonomyConfig struct {
	ReturnExclusions []string          `toml:"return_exclusions"`
	LossCategories   map[string]string `toml:"loss_categories"`
	Fallback         string            `toml:"fallback"`
}

func (t TaxonomyConfig) Build() *loader.Taxonomy {
	excl := t.ReturnExclusions
	if len(excl) == 0 {
		excl = loader.DefaultReturnExclusions
	}
	cats := t.LossCategories
	if len(cats) == 0 {
		cats = loader.DefaultLossCategories
	}
	return loader.NewTaxonomy(excl, cats, t.Fallback)
}

type CohortConfig struct {
	HighlightMonth string `toml:"highlight_month"`
	// HighlightOffset is nil when unset; zero highlights the cohort month.
	HighlightOffset *int `toml:"highlight_offset"`
}

func (c CohortConfig) Month() (cohort.Month, error) {
	return cohort.ParseMonth(c.HighlightMonth)
}

type CacheConfig struct {
	Size int `toml:"size"`
}

type SpacesConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	// Prefix is the key prefix the data files live under.
	Prefix string `toml:"prefix"`
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("WEB_HOST", &c.Web.Host)
	str("ADMIN_TOKEN", &c.Web.AdminToken)
	str("DATA_SOURCE", &c.Data.Source)
	str("DATA_TRANSACTIONS", &c.Data.Transactions)
	str("DATA_DIR", &c.Data.Dir)
	str("DB_HOST", &c.DB.Host)
	str("DB_USER", &c.DB.User)
	str("DB_PASSWORD", &c.DB.Password)
	str("DB_DATABASE", &c.DB.Database)
	str("SPACES_KEY", &c.Spaces.Key)
	str("SPACES_SECRET", &c.Spaces.Secret)
	str("SPACES_BUCKET", &c.Spaces.Bucket)

	if v, ok := lookup(envPrefix + "WEB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
	if v, ok := lookup(envPrefix + "DB_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.DB.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.ReloadRateLimit == 0 {
		c.Web.ReloadRateLimit = 5
	}
	if len(c.Web.TrustedProxies) > 0 && c.Web.ProxyHeader == "" {
		c.Web.ProxyHeader = "X-Forwarded-For"
	}
	c.Data.Source = strings.ToLower(strings.TrimSpace(c.Data.Source))
	if c.Data.Source == "" {
		c.Data.Source = SourceLocal
	}
	c.Data.Transactions = strings.ToLower(strings.TrimSpace(c.Data.Transactions))
	if c.Data.Transactions == "" {
		c.Data.Transactions = TransactionsParquet
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}

	d := loader.DefaultFiles()
	f := &c.Data.Files
	orDefault(&f.Transactions, d.Transactions)
	orDefault(&f.RFM, d.RFM)
	orDefault(&f.CustomerReturns, d.CustomerReturns)
	orDefault(&f.OpLosses, d.OpLosses)
	orDefault(&f.TopProducts, d.TopProducts)
	orDefault(&f.SegmentDefinitions, d.SegmentDefinitions)

	if c.Cohort.HighlightMonth == "" {
		c.Cohort.HighlightMonth = config.DefaultHighlightCohort
	}
	if c.Cohort.HighlightOffset == nil || *c.Cohort.HighlightOffset < 0 {
		offset := config.DefaultHighlightOffset
		c.Cohort.HighlightOffset = &offset
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = config.DefaultCacheSize
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = 10
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Spaces.Region == "" {
		c.Spaces.Region = "sgp1"
	}
}

func orDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Data.Source {
	case SourceLocal:
	case SourceSpaces:
		if c.Spaces.Bucket == "" {
			errs = append(errs, errors.New("data.source is spaces but spaces.bucket is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source %q: expected %s or %s", c.Data.Source, SourceLocal, SourceSpaces))
	}
	switch c.Data.Transactions {
	case TransactionsParquet:
	case TransactionsPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			errs = append(errs, errors.New("data.transactions is postgres but db.host or db.database is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.transactions %q: expected %s or %s", c.Data.Transactions, TransactionsParquet, TransactionsPostgres))
	}
	if _, err := c.Cohort.Month(); err != nil {
		errs = append(errs, fmt.Errorf("cohort.highlight_month: %w", err))
	}
	return errors.Join(errs...)
}
