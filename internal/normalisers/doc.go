// Package normalisers turns source formats into clean text.
// The text package normalises any extracted text; pdf and docx extract
// text and document properties from binary formats. Providers call
// these before fingerprinting.
package normalisers
