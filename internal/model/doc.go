// Package model holds everything tied to a specific acoustic model export:
// the side-car specification descriptor, the input tensor shaper with its
// encoder length arithmetic, the token vocabulary, and the inference
// session abstraction with its provider fallback.
package model
