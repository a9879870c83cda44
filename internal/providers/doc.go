// Package providers holds the document sources that feed the ingestion
// pipeline.
//
// Each subpackage implements driven.Provider:
//
//   - filesystem: walks local roots, delegates PDF and DOCX to extractors
//   - github: crawls a repository's default-branch tree
//   - pdf, docx: explicit file lists run through the extractors
//   - openapi: one document per operation of an OpenAPI description
//
// segment and langdetect hold helpers shared between providers.
package providers
