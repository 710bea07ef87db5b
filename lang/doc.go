// Package lang implements the folio document language, a superset of JSON
// with comments, docstrings, dates, and four string forms.
//
// # Grammar
//
// Informal EBNF:
//
//	Document   → Docstring? Value EOF
//	Value      → 'null' | 'true' | 'false' | Number | String
//	           | Date | DateTime | Array | Object
//	Object     → '{' (Property (Sep Property)* Sep?)? '}'
//	Property   → Docstring? Key ':'? Value Docstring?
//	Key        → [A-Za-z][A-Za-z0-9_-]* | EscapedString
//	Array      → '[' (Value (Sep Value)* Sep?)? ']'
//	Sep        → ',' | <line break>
//	Docstring  → ('///' <text to end of line>)+
//
// Comments are "//" to the end of the line and "/* ... */". Block comments
// do not nest. A line beginning with four or more slashes is a comment, not a
// docstring.
//
// # Strings
//
//	"escaped \t \n \x41 é"
//	#"literal "quotes" and \ backslashes"#
//	##"may contain "# sequences"##
//	d"
//	    dedented, escapes applied first
//	"
//	d#"
//	    dedented literal
//	"#
//
// A literal string opened with N '#' closes at the first quote followed by
// exactly N '#'. A quote followed by more than N is an error.
//
// # Example
//
//	/// A blog post.
//	{
//	  title: "Hello"
//	  published: 2022-01-01  /// publication day
//	  updated: 2022-01-03T10:00:00+01:00
//	  tags: ["go", "static"]
//	}
package lang
