package postgres

import (
	"fmt"

	"github.com/coachgrid/coachgrid/internal/authz"
)

// args accumulates positional query parameters
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// scopeClause renders f as a WHERE fragment over alias. ownerCol is empty for
// tables without an owner column. The result matches authz.Filter.Permits.
func scopeClause(f authz.Filter, alias, ownerCol string, unownedVisible bool, a *args) string {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	switch {
	case f.Unrestricted():
		return "TRUE"
	case f.SelfScoped():
		clause := col("admin_id") + " = " + a.add(f.TenantID())
		if ownerCol == "" {
			return clause
		}
		owner := col(ownerCol) + " = " + a.add(f.UserID())
		if unownedVisible {
			return clause + " AND (" + col(ownerCol) + " IS NULL OR " + owner + ")"
		}
		return clause + " AND " + owner
	case f.TenantID() != "":
		return col("admin_id") + " = " + a.add(f.TenantID())
	default:
		return "FALSE"
	}
}
