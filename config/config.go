package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"news-lens/internal/logging"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Bias      BiasConfig      `yaml:"bias"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Video     VideoConfig     `yaml:"video"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port        string   `yaml:"port" env:"PORT"`
	Mode        string   `yaml:"mode" env:"GIN_MODE"` // debug, release, test
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"` // sqlite, postgres
	Path   string `yaml:"path" env:"DB_PATH"`     // sqlite file
	DSN    string `yaml:"dsn" env:"DATABASE_URL"` // postgres
}

// RedisConfig 认领锁配置，Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr      string        `yaml:"addr" env:"REDIS_ADDR"`
	Password  string        `yaml:"password" env:"REDIS_PASSWD"`
	DB        int           `yaml:"db" env:"REDIS_DB"`
	LockLease time.Duration `yaml:"lock_lease" env:"LOCK_LEASE"`
	LockWait  time.Duration `yaml:"lock_wait" env:"LOCK_WAIT"`
}

type BiasConfig struct {
	URL        string        `yaml:"url" env:"BIAS_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"BIAS_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"BIAS_MAX_RETRIES"`
}

type SentimentConfig struct {
	URL        string            `yaml:"url" env:"SENTIMENT_URL"`
	Timeout    time.Duration     `yaml:"timeout" env:"SENTIMENT_TIMEOUT"`
	MaxRetries int               `yaml:"max_retries" env:"SENTIMENT_MAX_RETRIES"`
	Headers    map[string]string `yaml:"headers"`
}

type VideoConfig struct {
	BaseURL    string        `yaml:"base_url" env:"VIDEO_API_BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	Timeout    time.Duration `yaml:"timeout" env:"VIDEO_TIMEOUT"`
	MaxResults int           `yaml:"max_results" env:"VIDEO_MAX_RESULTS"`
}

type IngestConfig struct {
	Schedule    string        `yaml:"schedule" env:"INGEST_SCHEDULE"` // cron 表达式，为空不启用
	Concurrency int           `yaml:"concurrency" env:"INGEST_CONCURRENCY"`
	FeedTimeout time.Duration `yaml:"feed_timeout" env:"INGEST_FEED_TIMEOUT"`
	Feeds       []FeedConfig  `yaml:"feeds"`
}

type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // text, json
}

// DefaultFeeds 配置文件未指定时抓取的默认订阅源
var DefaultFeeds = []FeedConfig{
	{Name: "CNN US", URL: "http://rss.cnn.com/rss/cnn_us.rss"},
	{Name: "NYT US", URL: "https://rss.nytimes.com/services/xml/rss/nyt/US.xml"},
	{Name: "Fox News Politics", URL: "https://moxie.foxnews.com/google-publisher/politics.xml"},
	{Name: "ABC News US", URL: "https://abcnews.go.com/abcnews/usheadlines"},
	{Name: "WSJ US News", URL: "https://feeds.content.dowjones.io/public/rss/RSSUSnews"},
	{Name: "LA Times Nation", URL: "https://www.latimes.com/nation/rss2.0.xml"},
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			Mode:        "debug",
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/news.db",
		},
		Redis: RedisConfig{
			LockLease: 2 * time.Minute,
			LockWait:  90 * time.Second,
		},
		Bias: BiasConfig{
			Timeout:    60 * time.Second,
			MaxRetries: 1,
		},
		Sentiment: SentimentConfig{
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Video: VideoConfig{
			BaseURL:    "https://www.googleapis.com/youtube/v3",
			Timeout:    15 * time.Second,
			MaxResults: 5,
		},
		Ingest: IngestConfig{
			Schedule:    "*/30 * * * *",
			Concurrency: 1,
			FeedTimeout: 30 * time.Second,
			Feeds:       append([]FeedConfig(nil), DefaultFeeds...),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 加载配置：默认值 -> YAML 文件（可选）-> 环境变量
func Load(configPath string) (*Config, error) {
	LoadDotEnvs("")

	cfg := Default()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configPath)
		}

		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", configPath)
		}
	} else {
		logging.Log.Infof("config file %s not found, using defaults", configPath)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnvs 按 https://github.com/bkeepers/dotenv#what-other-env-files-can-i-use 的顺序加载 .env 文件
// 已存在的环境变量优先
func LoadDotEnvs(rootPath string) {
	env := os.Getenv("NEWSLENS_ENV")
	if env == "" {
		env = "dev"
	}

	// .env.[env].local 优先级最高，一般放密钥
	godotenv.Load(rootPath + ".env." + env + ".local")
	godotenv.Load(rootPath + ".env.local")
	godotenv.Load(rootPath + ".env." + env)
	godotenv.Load(rootPath + ".env")
}

// Validate 校验必需配置，视频 API Key 在调用时检查
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			problems = append(problems, "database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}

	if c.Bias.URL == "" {
		problems = append(problems, "bias.url (BIAS_WEBHOOK_URL) is required")
	}
	if c.Sentiment.URL == "" {
		problems = append(problems, "sentiment.url (SENTIMENT_URL) is required")
	}
	if c.Video.BaseURL == "" {
		problems = append(problems, "video.base_url is required")
	}
	if c.Video.MaxResults <= 0 {
		problems = append(problems, "video.max_results must be positive")
	}
	if c.Bias.Timeout <= 0 || c.Sentiment.Timeout <= 0 || c.Video.Timeout <= 0 {
		problems = append(problems, "collaborator timeouts must be positive")
	}
	if c.Ingest.Concurrency <= 0 {
		problems = append(problems, "ingest.concurrency must be positive")
	}
	for i, f := range c.Ingest.Feeds {
		if f.URL == "" {
			problems = append(problems, fmt.Sprintf("ingest.feeds[%d].url is required", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	if c.Video.APIKey == "" {
		logging.Log.Warn("YOUTUBE_API_KEY is not set, public opinion lookups will fail")
	}
	return nil
}

// GetServerAddress 获取监听地址
func (c *Config) GetServerAddress() string {
	// 纯端口号补上冒号
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnvOverrides 用 `env` 标签对应的环境变量覆盖字段
func applyEnvOverrides(v interface{}) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			if err := applyEnvOverrides(fieldVal.Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envVal, ok := os.LookupEnv(envTag)
		if !ok || !fieldVal.CanSet() {
			continue
		}

		if fieldVal.Type() == durationType {
			d, err := time.ParseDuration(envVal)
			if err != nil {
				return errors.Wrapf(err, "env %s", envTag)
			}
			fieldVal.SetInt(int64(d))
			continue
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(envVal)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(envVal, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "env %s", envTag)
			}
			fieldVal.SetInt(n)
		case reflect.Bool:
			fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
		case reflect.Slice:
			if fieldVal.Type().Elem().Kind() != reflect.String {
				continue
			}
			var items []string
			for _, s := range strings.Split(envVal, ",") {
				if s = strings.TrimSpace(s); s != "" {
					items = append(items, s)
				}
			}
			fieldVal.Set(reflect.ValueOf(items))
		}
	}
	return nil
}
