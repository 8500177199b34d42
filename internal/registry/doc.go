// Package registry gives the overrides service access to the host's live
// entity registry.
//
// The registry is reached through the Adapter interface so export and import
// logic can be exercised without a running host. SQLiteAdapter is the
// production implementation; it reads and writes the host's entities and
// areas tables directly.
//
// Only the user-editable attributes are touched:
//   - name (the user friendly name, empty when the original name is used)
//   - icon
//   - area assignment
//   - hidden_by / disabled_by, set to "user" or cleared
//
// Usage:
//
//	adapter := registry.NewSQLiteAdapter(db.DB)
//	entries, err := adapter.List(ctx)
//	if err != nil {
//	    return err
//	}
package registry
