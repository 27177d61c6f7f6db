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

const (
	defaultDatabaseName = "graphql-app-example"
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// EffectivePort returns the configured port, or the driver default when unset.
func (d *DatabaseConfig) EffectivePort() int {
	if d.Port != 0 {
		return d.Port
	}
	if d.Driver == DriverPostgres {
		return defaultPostgresPort
	}
	return defaultMySQLPort
}

// DSN returns the data source name for the configured driver.
// A ConnectionString is used as given, except that MySQL DSNs always get
// parseTime enabled so DATETIME columns scan into time.Time.
func (d *DatabaseConfig) DSN() (string, error) {
	if d.Driver == DriverPostgres {
		return d.postgresDSN(), nil
	}
	return d.mysqlDSN()
}

func (d *DatabaseConfig) mysqlDSN() (string, error) {
	if dsn := strings.TrimSpace(d.ConnectionString); dsn != "" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}

	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort()))
	cfg.DBName = d.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (d *DatabaseConfig) postgresDSN() string {
	if dsn := strings.TrimSpace(d.ConnectionString); dsn != "" {
		return dsn
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host,
		Path:   "/" + d.Database,
	}
	if d.Port != 0 {
		u.Host = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}
	return u.String()
}

// EffectiveDatabaseName returns the database the DSN points at.
func (d *DatabaseConfig) EffectiveDatabaseName() (string, error) {
	dsn := strings.TrimSpace(d.ConnectionString)
	if dsn == "" {
		return d.Database, nil
	}
	if d.Driver == DriverPostgres {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		return strings.TrimPrefix(parsed.Path, "/"), nil
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database.dsn is invalid: %w", err)
	}
	return parsed.DBName, nil
}
