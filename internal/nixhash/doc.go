// Package nixhash reproduces the Nix store addressing primitives needed to
// predict where `nix-store --add-fixed` will place a file: XOR hash
// compression, the Nix flavour of base-32 and the two-stage fixed-output
// digest. Everything here is pure and allocation-light; callers may invoke it
// from any goroutine.
package nixhash
