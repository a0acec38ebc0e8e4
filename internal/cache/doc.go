// Package cache models Composer's files cache (cache-files-dir) as seen by
// nixify. The disk store resolves sanitized cache keys into files under the
// cache root, hashes them, adopts freshly downloaded files with rename
// semantics, and hands out scoped staging directories that callers must
// Close. Index sits on top of the store and classifies lockfile packages
// into closed Entry variants, refetching through a Refetcher on cache miss.
// The cache root is not locked; callers serialise runs against one root.
package cache
