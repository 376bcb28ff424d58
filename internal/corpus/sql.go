package corpus

import (
	"context"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers "sqlite"

	"firassist/internal/domain"
)

// SQLConfig points at a table holding one row per section.
// OrderBy fixes the load order; it defaults to rowid for sqlite and to the
// section column otherwise.
type SQLConfig struct {
	Driver  string // "sqlite" or "pgx"
	DSN     string
	Table   string
	OrderBy string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type sectionRow struct {
	Section     string `db:"section"`
	Description string `db:"description"`
}

// LoadSQL connects with cfg and reads the section table.
func LoadSQL(ctx context.Context, cfg SQLConfig, cols Columns) ([]domain.CorpusEntry, error) {
	source := fmt.Sprintf("%s:%s", cfg.Driver, cfg.Table)
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer db.Close()
	return QueryTable(ctx, db, cfg.Table, cfg.OrderBy, cols)
}

// QueryTable reads sections from an open database.
func QueryTable(ctx context.Context, db *sqlx.DB, table, orderBy string, cols Columns) ([]domain.CorpusEntry, error) {
	cols = cols.withDefaults()
	source := fmt.Sprintf("%s:%s", db.DriverName(), table)
	if orderBy == "" {
		if db.DriverName() == "sqlite" {
			orderBy = "rowid"
		} else {
			orderBy = cols.Section
		}
	}
	for _, ident := range []string{table, orderBy, cols.Section, cols.Description} {
		if !identRe.MatchString(ident) {
			return nil, &LoadError{Source: source, Err: fmt.Errorf("invalid identifier %q", ident)}
		}
	}

	q := fmt.Sprintf(`SELECT %s AS section, %s AS description FROM %s ORDER BY %s`,
		cols.Section, cols.Description, table, orderBy)
	var rows []sectionRow
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	recs := make([]record, len(rows))
	for i, r := range rows {
		recs[i] = record{line: i + 1, section: r.Section, description: r.Description}
	}
	return buildEntries(source, recs)
}
