// Package source turns source files into records.
//
// XMLSource reads attribute-style XML documents: every element whose
// attribute count equals the record type's field count becomes one record,
// with attributes named after the upper-cased field names:
//
//	<People>
//	  <Person ID="1" NAME="Ada" BORN="1815-12-10T00:00:00"/>
//	  <Person ID="2" NAME="Alan" BORN=""/>
//	</People>
//
// Attribute names are matched case-insensitively. A missing attribute, or an
// empty one on a non-text field, is a NULL.
package source
