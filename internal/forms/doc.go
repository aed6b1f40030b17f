// Package forms binds user-submitted input to quill's records.
//
// Each form validates its input, reports field-level Errors, exposes ordered
// presentation metadata through Fields, and builds the target record in
// Save. Save with commit=false returns the record unsaved so callers can
// finish it (set the author, attach an image) before persisting.
package forms
