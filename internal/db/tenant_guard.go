package db

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kitchenops/checklists/internal/appctx"
)

const tenantColumn = "tenant_id"

// TenantGuardPlugin scopes queries, updates and deletes to the tenant of the
// principal found in the statement context, for every model with a tenant_id
// column. Raw SQL and Table() queries without a model are not covered and
// must filter on tenant_id themselves.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return
	}
	ctx := db.Statement.Context
	if appctx.SkipTenantScope(ctx) {
		return
	}
	tenantID := appctx.TenantID(ctx)
	if tenantID == "" || db.Statement.Schema == nil {
		return
	}
	if db.Statement.Schema.LookUpField(tenantColumn) == nil {
		return
	}
	if whereHasTenant(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

func whereHasTenant(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTenant(e) {
			return true
		}
	}
	return false
}

func exprHasTenant(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsTenant(v.Column)
	case clause.IN:
		return colIsTenant(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTenant(x) {
				return true
			}
		}
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	}
	return false
}

func colIsTenant(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn) || strings.HasSuffix(strings.ToLower(c), "."+tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	}
	return false
}
