package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDatabasePing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()

	c := NewChecker("test").Critical("database", PingProbe(db))

	r := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, StatusHealthy, r.Checks["database"].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	c := NewChecker("test").
		Critical("database", PingProbe(db)).
		Static("sms", StatusSimulated)

	r := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "connection refused", r.Checks["database"].Error)
	assert.Equal(t, StatusSimulated, r.Checks["sms"].Status)

	pub := r.Public()
	assert.Empty(t, pub.Checks["database"].Error)
	assert.Equal(t, StatusUnhealthy, pub.Checks["database"].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionalFailureDegrades(t *testing.T) {
	c := NewChecker("test").
		Critical("database", func(context.Context) error { return nil }).
		Optional("redis", func(context.Context) error { return errors.New("timeout") })

	r := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, StatusHealthy, r.Checks["database"].Status)
	assert.Equal(t, StatusUnhealthy, r.Checks["redis"].Status)
}

func TestRuntime(t *testing.T) {
	rt := NewChecker("1.2.3").Runtime()
	assert.Equal(t, "1.2.3", rt.Version)
	assert.Positive(t, rt.Goroutines)
}
