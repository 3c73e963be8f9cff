// Package schema holds the record type registry and the naming convention
// that maps files to record types and record types to tables.
//
// Record types are declared once in a YAML file and shared by every record
// of that shape, so the writer never re-derives column metadata per row:
//
//	naming:
//	  prefix: stg_
//	  case: lower
//	types:
//	  - name: Person
//	    file_pattern: "people-*.xml"
//	    fields:
//	      - {name: Id, kind: integer32}
//	      - {name: Name, kind: text}
package schema
