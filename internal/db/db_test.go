package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/qpipe/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Database{
		Host:     "db.internal",
		Port:     3306,
		User:     "pipeline",
		Password: "secret",
	}
	assert.Equal(t, "pipeline:secret@tcp(db.internal:3306)/", DSN(cfg, ""))
	assert.Equal(t, "pipeline:secret@tcp(db.internal:3306)/inventory", DSN(cfg, "inventory"))
}
