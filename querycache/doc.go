// Package querycache caches prepared queries by id with exclusions of uncachable ids.
package querycache
