package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.PostgresConfig
		maxConns int32
		minConns int32
		appName  string
	}{
		{
			name:     "limits applied",
			cfg:      config.PostgresConfig{DSN: "postgres://u:p@db:5432/vsp", MaxOpen: 20, MaxIdle: 4, ConnMaxLifetime: time.Minute},
			maxConns: 20,
			minConns: 4,
			appName:  applicationName,
		},
		{
			name:     "idle above open ignored",
			cfg:      config.PostgresConfig{DSN: "postgres://u:p@db:5432/vsp", MaxOpen: 2, MaxIdle: 5},
			maxConns: 2,
			minConns: 0,
			appName:  applicationName,
		},
		{
			name:     "dsn application name kept",
			cfg:      config.PostgresConfig{DSN: "postgres://u:p@db:5432/vsp?application_name=ops", MaxOpen: 3},
			maxConns: 3,
			minConns: 0,
			appName:  "ops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := poolConfig(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.maxConns, pc.MaxConns)
			assert.Equal(t, tt.minConns, pc.MinConns)
			assert.Equal(t, tt.appName, pc.ConnConfig.RuntimeParams["application_name"])
			assert.Equal(t, "db", pc.ConnConfig.Host)
		})
	}
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	_, err := poolConfig(config.PostgresConfig{DSN: "postgres://u:p@db:notaport/vsp"})
	assert.ErrorContains(t, err, "parse dsn")
}
