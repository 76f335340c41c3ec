package query

// SQL text for the catalog queries. Statement text is compared verbatim by
// callers, so keep it stable.
const (
	sqlListDatabases = "SELECT datname FROM pg_database;"

	sqlListTables = "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public';"

	// Table contents interpolates the table name as-is.
	sqlTableContentsFormat = "SELECT * FROM %s;"
)
