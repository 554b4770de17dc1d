// Package checkpoint records which days of a crawl have been written so an
// interrupted run can resume where it stopped.
//
// A checkpoint is keyed by the query and date range (see Key) and lists the
// completed days with their record counts and object log files. Files live
// in platform-specific data directories:
//   - Linux: ~/.local/share/tweetcrawler/checkpoints/
//   - macOS: ~/Library/Application Support/tweetcrawler/checkpoints/
//   - Windows: %APPDATA%/tweetcrawler/checkpoints/
//
// Saves go through a temporary file and a rename, so a crash leaves either
// the previous or the new checkpoint on disk.
package checkpoint
