// Package restapi serves the row-level REST surface presence clients use
// when they cannot go through the command bus: the unload flush PATCH and
// one-shot GET reads, both under /rest/v1/{table}. Requests carry a bearer
// JWT and an apikey header; writes are only accepted for the caller's own
// row.
package restapi
