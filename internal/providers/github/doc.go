// Package github loads documents from a GitHub repository.
//
// The provider lists the default branch tree recursively and fetches every
// text blob through the Git data API. Documents use the path inside the
// repository and the repository's owner/name as namespace. Large files are
// segmented like filesystem documents.
//
// # Rate limiting
//
// The client throttles proactively with a token bucket and tracks the
// X-RateLimit-* headers. When GitHub answers 403 for rate limiting, the
// client sleeps until X-RateLimit-Reset. Without a reset time it backs off
// exponentially, capped at eight seconds, for up to MaxRetries attempts.
//
// # Authentication
//
// A personal access token (GITHUB_TOKEN) is optional. Unauthenticated
// requests are limited to 60 per hour.
package github
