// Package lockfile reads composer.lock into explicit package descriptors.
// It reproduces the small slices of Composer behaviour that the cache key
// depends on: version normalisation (for unique names), dist mirror URL
// expansion, and the per-host dist reference substitution.
package lockfile
