package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the MySQL DSN for this database config. An explicit DSN
// always wins over the discrete fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}

	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Name
	dsn.ParseTime = c.ParseTime
	dsn.Loc = resolveLocation(c.Loc)

	params := map[string]string{}
	if c.Charset != "" {
		params["charset"] = c.Charset
	}
	for k, v := range c.Params {
		params[k] = v
	}
	if len(params) > 0 {
		dsn.Params = params
	}
	return dsn.FormatDSN()
}

// URLValue returns the go-redis connection URL.
func (c RedisRuntimeConfig) URLValue() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   fmt.Sprintf("/%d", c.DB),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	case c.Password != "":
		u.User = url.UserPassword("", c.Password)
	}
	return u.String()
}

func resolveLocation(name string) *time.Location {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local
	case "UTC", "utc":
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
