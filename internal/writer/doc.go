// Package writer implements the two write strategies of the loader.
//
// Append streams a whole batch through one binary COPY, so a batch becomes
// visible all at once or not at all. Merge runs one
// INSERT ... ON CONFLICT (key) DO UPDATE per record, keyed on the record
// type's first field. By default every row commits on its own; with
// WithAtomicMerge the whole batch runs in one transaction.
//
// Column lists, conflict clauses and per-kind value encoders are derived once
// per record type and cached.
package writer
