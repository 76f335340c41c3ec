package query

import (
	"testing"

	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetDatabaseAndSQLText(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		database string
		sql      string
	}{
		{
			name:     "list databases",
			query:    ListDatabases{},
			database: "",
			sql:      "SELECT datname FROM pg_database;",
		},
		{
			name:     "list tables without database",
			query:    ListTables{},
			database: "",
			sql:      "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public';",
		},
		{
			name:     "list tables in database",
			query:    ListTables{Database: "app_db"},
			database: "app_db",
			sql:      "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public';",
		},
		{
			name:     "table contents",
			query:    ListTableContents{Table: "users"},
			database: "",
			sql:      "SELECT * FROM users;",
		},
		{
			name:     "table contents in database",
			query:    ListTableContents{Database: "app_db", Table: "orders"},
			database: "app_db",
			sql:      "SELECT * FROM orders;",
		},
		{
			name:     "table name is interpolated verbatim",
			query:    ListTableContents{Table: "users; DROP TABLE users"},
			database: "",
			sql:      "SELECT * FROM users; DROP TABLE users;",
		},
		{
			name:     "custom sql verbatim",
			query:    CustomSQL{Database: "app_db", SQL: "select count(*) from users"},
			database: "app_db",
			sql:      "select count(*) from users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.database, TargetDatabase(tt.query))
			assert.Equal(t, tt.sql, SQLText(tt.query))

			// No hidden state: a second call gives the same answer.
			assert.Equal(t, TargetDatabase(tt.query), TargetDatabase(tt.query))
			assert.Equal(t, SQLText(tt.query), SQLText(tt.query))
		})
	}
}

func TestDescriptor(t *testing.T) {
	base := database.Descriptor("host=localhost user=alice")

	assert.Equal(t, base, Descriptor(base, ListDatabases{}))
	assert.Equal(t, base, Descriptor(base, ListTables{}))
	assert.Equal(t,
		database.Descriptor("host=localhost user=alice dbname=app_db"),
		Descriptor(base, ListTableContents{Database: "app_db", Table: "users"}))
	assert.Equal(t, database.Descriptor(""), Descriptor("", CustomSQL{Database: "app_db", SQL: "SELECT 1"}))
}

func TestName(t *testing.T) {
	assert.Equal(t, "ListDatabases", Name(ListDatabases{}))
	assert.Equal(t, "ListTables", Name(ListTables{}))
	assert.Equal(t, "ListTableContents", Name(ListTableContents{}))
	assert.Equal(t, "CustomSQL", Name(CustomSQL{}))
}

func TestCodec(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		json  string
	}{
		{"list databases", ListDatabases{}, `"ListDatabases"`},
		{"list tables", ListTables{Database: "app_db"}, `{"ListTables":{"database":"app_db"}}`},
		{"list tables no db", ListTables{}, `{"ListTables":{}}`},
		{"table contents", ListTableContents{Table: "users"}, `{"ListTableContents":{"table":"users"}}`},
		{"custom sql", CustomSQL{Database: "db", SQL: "SELECT 1"}, `{"CustomSQL":{"database":"db","sql":"SELECT 1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.query)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.query, got)
		})
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		errSubstr string
	}{
		{"unknown bare variant", `"ListTables"`, "needs parameters"},
		{"unknown tagged variant", `{"DropEverything":{}}`, "unknown variant"},
		{"two variants", `{"ListTables":{},"CustomSQL":{}}`, "exactly one"},
		{"table contents without table", `{"ListTableContents":{"database":"x"}}`, "needs a table"},
		{"not json", `nope`, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestUnmarshal_NullBody(t *testing.T) {
	got, err := Unmarshal([]byte(`{"ListDatabases":null}`))
	require.NoError(t, err)
	assert.Equal(t, ListDatabases{}, got)

	got, err = Unmarshal([]byte(`{"ListTables":null}`))
	require.NoError(t, err)
	assert.Equal(t, ListTables{}, got)
}

func TestNormalize(t *testing.T) {
	var nilTables *ListTables

	tests := []struct {
		name    string
		query   Query
		want    Query
		wantErr bool
	}{
		{"value variant", ListTables{Database: "app_db"}, ListTables{Database: "app_db"}, false},
		{"pointer list databases", &ListDatabases{}, ListDatabases{}, false},
		{"pointer list tables", &ListTables{Database: "app_db"}, ListTables{Database: "app_db"}, false},
		{"pointer table contents", &ListTableContents{Table: "users"}, ListTableContents{Table: "users"}, false},
		{"pointer custom sql", &CustomSQL{SQL: "SELECT 1"}, CustomSQL{SQL: "SELECT 1"}, false},
		{"nil query", nil, nil, true},
		{"nil pointer variant", nilTables, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.query)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownVariant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPointerVariantsDoNotPanic(t *testing.T) {
	var nilContents *ListTableContents

	assert.Equal(t, "app_db", TargetDatabase(&ListTables{Database: "app_db"}))
	assert.Equal(t, "SELECT * FROM users;", SQLText(&ListTableContents{Table: "users"}))
	assert.Equal(t, "ListTables", Name(&ListTables{}))
	assert.Equal(t, KindTableName, kindFor(&ListTables{}))

	assert.NotPanics(t, func() {
		assert.Empty(t, TargetDatabase(nilContents))
		assert.Empty(t, SQLText(nilContents))
		assert.Empty(t, SQLText(nil))
	})

	data, err := Marshal(&CustomSQL{SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"CustomSQL":{"sql":"SELECT 1"}}`, string(data))
}
