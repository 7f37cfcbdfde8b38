// Package repositories implements SQLite persistence for the local copy of the media library.
//
// [MediaRepository] mirrors what the media library has loaded, in list order, so `media ls --offline` and
// exports can run without the backend. Rows are keyed by a local UUID with the backend media id kept unique.
package repositories
