package mongosql

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mongosql-engine/mongosql/engine/translator"
)

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "mongodb://localhost:27017/appdb", want: "appdb"},
		{dsn: "mongodb://localhost:27017/appdb?retryWrites=true", want: "appdb"},
		{dsn: "mongodb+srv://cluster0.example.net/appdb", want: "appdb"},
		{dsn: "mongodb://h1:27017,h2:27017/appdb?replicaSet=rs0", want: "appdb"},
		{dsn: "mongodb://localhost:27017", wantErr: true},
		{dsn: "mongodb://localhost:27017/", wantErr: true},
		{dsn: "mongodb://localhost:27017/?retryWrites=true", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := databaseName(tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewConnectorDefaults(t *testing.T) {
	c, err := NewConnector("mongodb://localhost:27017/appdb")
	require.NoError(t, err)
	assert.Equal(t, "appdb", c.dbName)
	assert.NotNil(t, c.cfg.log)
}

func TestNewConnectorRejectsMissingDatabase(t *testing.T) {
	_, err := NewConnector("mongodb://localhost:27017")
	assert.Error(t, err)
}

type txMarker struct{}

func TestExecutionJoinsOpenTransaction(t *testing.T) {
	exec := &fakeExecutor{affected: 1}
	conn := &Conn{translator: translator.New(), exec: exec, log: zap.NewNop()}
	conn.txCtx = func(ctx context.Context) context.Context {
		return context.WithValue(ctx, txMarker{}, "open")
	}

	t.Run("exec", func(t *testing.T) {
		_, err := conn.ExecContext(context.Background(), "DELETE FROM users", nil)
		require.NoError(t, err)
		assert.Equal(t, "open", exec.lastCtx.Value(txMarker{}))
	})

	t.Run("query", func(t *testing.T) {
		rows, err := conn.QueryContext(context.Background(), "SELECT * FROM users", nil)
		require.NoError(t, err)
		defer rows.Close()
		assert.Equal(t, "open", exec.lastCtx.Value(txMarker{}))
	})

	t.Run("prepared statement", func(t *testing.T) {
		st, err := conn.PrepareContext(context.Background(), "DELETE FROM users")
		require.NoError(t, err)
		defer st.Close()
		_, err = st.(driver.StmtExecContext).ExecContext(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "open", exec.lastCtx.Value(txMarker{}))
	})

	t.Run("outside a transaction the context passes through", func(t *testing.T) {
		conn.txCtx = nil
		_, err := conn.ExecContext(context.Background(), "DELETE FROM users", nil)
		require.NoError(t, err)
		assert.Nil(t, exec.lastCtx.Value(txMarker{}))
	})
}
