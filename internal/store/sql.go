package store

import (
	"strconv"
	"strings"
)

// Both SQL backends keep every kind in one documents table. The partial
// unique indexes mirror uniqueKey.
func schemaStatements(seqColumn, bodyType string) []string {
	return []string{
		`create table if not exists documents (
			seq ` + seqColumn + `,
			kind text not null,
			id text not null,
			owner text not null default '',
			symbol text not null default '',
			version bigint not null default 1,
			body ` + bodyType + ` not null,
			unique (kind, id)
		)`,
		`create index if not exists documents_kind_owner_symbol_idx on documents (kind, owner, symbol)`,
		`create unique index if not exists documents_users_uq on documents (owner) where kind = 'users'`,
		`create unique index if not exists documents_positions_uq on documents (owner, symbol) where kind = 'current_stocks'`,
		`create unique index if not exists documents_stock_data_uq on documents (symbol) where kind = 'stock_data'`,
	}
}

type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func question(int) string { return "?" }

// where renders the filter as a where clause; args continue after the
// first offset placeholders.
func where(kind Kind, f Filter, ph placeholder, offset int) (string, []any) {
	args := []any{string(kind)}
	conds := []string{"kind = " + ph(offset+1)}
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = "+ph(offset+len(args)))
	}
	if f.ID != "" {
		add("id", f.ID)
	}
	if f.Owner != "" {
		add("owner", f.Owner)
	}
	if f.Symbol != "" {
		add("symbol", f.Symbol)
	}
	if f.Version != 0 {
		add("version", f.Version)
	}
	return " where " + strings.Join(conds, " and "), args
}
