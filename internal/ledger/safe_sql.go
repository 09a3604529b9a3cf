package ledger

import "fmt"

// AllowedTables is the whitelist of ledger tables that may be named in
// dynamically built queries.
var AllowedTables = map[string]bool{
	"runs":        true,
	"manifests":   true,
	"submissions": true,
}

// ErrInvalidTableName is returned when a table name is not in the whitelist.
var ErrInvalidTableName = fmt.Errorf("invalid table name")

// ValidateTableName checks if a table name is in the allowed list.
func ValidateTableName(table string) error {
	if !AllowedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

// CountTable counts rows in a ledger table.
func (db *DB) CountTable(table string) (int64, error) {
	if err := ValidateTableName(table); err != nil {
		return 0, fmt.Errorf("CountTable: %w", err)
	}
	var count int64
	err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}

// Stats returns the row count of every ledger table.
func (db *DB) Stats() (map[string]int64, error) {
	stats := make(map[string]int64, len(AllowedTables))
	for table := range AllowedTables {
		n, err := db.CountTable(table)
		if err != nil {
			return nil, err
		}
		stats[table] = n
	}
	return stats, nil
}
