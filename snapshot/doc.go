// Package snapshot persists agency state captured when an agency stops.
//
// A snapshot is the complete serialized AgencyState: every agent's identity,
// instruction and full message history. Snapshots are named with UUIDv7 ids
// so lexicographic order matches creation order, and a stopped agency can be
// resumed later by loading any saved snapshot.
//
// Two backends are provided: FileStore keeps one JSON file per snapshot in a
// directory, SQLiteStore keeps gzip-compressed JSON blobs in a SQLite table.
package snapshot
