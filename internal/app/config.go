package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppPort    string `envconfig:"APP_PORT" default:"8080"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     string `envconfig:"DB_PORT" default:"3306"`
	DBName     string `envconfig:"DB_NAME" default:"contactbook"`
	DBUser     string `envconfig:"DB_USER" default:"contactbook"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"contactbook"`

	JWTSecret       string        `envconfig:"JWT_SECRET" default:"dev_jwt_secret_change_me"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	AdminInitEnabled bool   `envconfig:"ADMIN_INIT_ENABLED" default:"false"`
	AdminInitName    string `envconfig:"ADMIN_INIT_NAME" default:"Admin"`
	AdminInitEmail   string `envconfig:"ADMIN_INIT_EMAIL"`
	AdminInitPass    string `envconfig:"ADMIN_INIT_PASSWORD"`

	UploadDir string `envconfig:"UPLOAD_DIR" default:"uploads"`

	LoginRatePerMinute int `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`
	LoginRateBurst     int `envconfig:"LOGIN_RATE_BURST" default:"5"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// DSN sets clientFoundRows so UPDATE reports matched rows rather than changed
// rows. Without it, a patch that writes back the already-stored values counts
// zero rows and is indistinguishable from a missing row.
func (c Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4&clientFoundRows=true"
}
