package store

// Register the pure-Go SQLite driver under the name "sqlite".
import _ "modernc.org/sqlite"
