package ddl

// GenerationOrder returns the table names ordered so that every table
// appears after the tables it references through foreign keys. The
// traversal is a depth-first postorder over FK edges; the visited set
// breaks cycles, including self-references, so every table appears exactly
// once. Foreign keys pointing at tables outside this parse result impose
// no ordering constraint. Given identical input text the order is
// deterministic because traversal starts from Names in source order.
func (r *ParseResult) GenerationOrder() []string {
	visited := make(map[string]bool, len(r.Tables))
	order := make([]string, 0, len(r.Tables))

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		for _, fk := range r.Tables[name].ForeignKeys {
			if _, ok := r.Tables[fk.ReferencedTable]; ok {
				visit(fk.ReferencedTable)
			}
		}

		order = append(order, name)
	}

	for _, name := range r.Names {
		visit(name)
	}

	return order
}

// Dependents returns the names of tables holding a foreign key that
// references the given table, excluding the table itself. Used to warn
// callers about downstream tables after a single-table regeneration.
func (r *ParseResult) Dependents(name string) []string {
	var out []string
	for _, candidate := range r.Names {
		if candidate == name {
			continue
		}
		for _, fk := range r.Tables[candidate].ForeignKeys {
			if fk.ReferencedTable == name {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}
