package db

import (
	"testing"
	"time"

	"github.com/smallbiznis/escrutinio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromConvertsPoolSeconds(t *testing.T) {
	cfg := ConfigFrom(config.Config{
		DBType:            " Postgres ",
		DBName:            "escrutinio",
		DBMaxOpenConn:     20,
		DBConnMaxLifetime: 300,
		DBConnMaxIdleTime: 60,
	})

	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, 20, cfg.Pool.MaxOpen)
	assert.Equal(t, 5*time.Minute, cfg.Pool.MaxLifetime)
	assert.Equal(t, time.Minute, cfg.Pool.MaxIdleTime)
}

func TestDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "postgres defaults sslmode",
			cfg:  Config{Type: "postgres", Host: "db", Port: "5432", Name: "escrutinio", User: "app", Password: "secret"},
			want: "host=db user=app password=secret dbname=escrutinio port=5432 sslmode=disable TimeZone=UTC",
		},
		{
			name: "mysql",
			cfg:  Config{Type: "mysql", Host: "db", Port: "3306", Name: "escrutinio", User: "app", Password: "secret"},
			want: "app:secret@tcp(db:3306)/escrutinio?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "sqlite file",
			cfg:  Config{Type: "sqlite", Name: "/var/lib/escrutinio.db"},
			want: "/var/lib/escrutinio.db",
		},
		{
			name: "sqlite default file",
			cfg:  Config{Type: "sqlite"},
			want: defaultSQLiteFile,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := tc.cfg.DSN()
			require.NoError(t, err)
			assert.Equal(t, tc.want, dsn)
		})
	}

	_, err := Config{Type: "oracle"}.DSN()
	assert.Error(t, err)
}
