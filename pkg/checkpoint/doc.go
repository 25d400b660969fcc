// Package checkpoint saves and resumes the progress of a thanking run.
//
// A checkpoint records the run id, the fixed total, the processed count and
// the recipients already resolved in the current batch, so a run interrupted
// by a stop or a crash picks up without thanking anyone twice.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/favthanker/checkpoints/
//   - macOS: ~/Library/Application Support/favthanker/checkpoints/
//   - Windows: %APPDATA%/favthanker/checkpoints/
//
// Files are replaced atomically so a crash mid-write never corrupts them.
package checkpoint
