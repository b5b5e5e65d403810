// Package member adapts the external member CRUD service as a read-only
// source of searchable text. The canonical records live upstream.
package member
