package table

import "strings"

// Definition describes the single relation the gateway is allowed to query.
// Everything the planner tells the model about the schema, and everything the
// rewriter knows about which columns hold free text, comes from here.
type Definition struct {
	Name        string
	Columns     []Column
	TextColumns []string
}

type Column struct {
	Name string
	Type string
}

// WasteData is the default permitted table.
func WasteData() Definition {
	return Definition{
		Name: "wastedata",
		Columns: []Column{
			{Name: "city", Type: "TEXT"},
			{Name: "year", Type: "INTEGER"},
			{Name: "wastecollected", Type: "INTEGER"},
			{Name: "recycledwaste", Type: "INTEGER"},
		},
		TextColumns: []string{"city"},
	}
}

// IsTextColumn reports whether name is one of the free-text columns that
// case-insensitive comparison rewriting applies to.
func (d Definition) IsTextColumn(name string) bool {
	for _, column := range d.TextColumns {
		if strings.EqualFold(column, name) {
			return true
		}
	}
	return false
}

// SchemaPrompt renders the schema the way the planner hands it to the model.
func (d Definition) SchemaPrompt() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString(" (")
	for i, column := range d.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column.Name)
		b.WriteString(" ")
		b.WriteString(column.Type)
	}
	b.WriteString(")")
	return b.String()
}
